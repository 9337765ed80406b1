package capture

import (
	"bufio"
	"io"
	"net"
	"strconv"
	"strings"

	"DHTSpectra/internal/model"
)

// PacketRecord is one parsed line of capture-tool output: a single observed
// packet with its endpoints and size on the wire.
type PacketRecord struct {
	SrcIP  string
	DstIP  string
	Length uint64
}

// parseLine applies the strict line grammar: exactly three or more
// whitespace-separated fields, the first two valid IP addresses, the third a
// non-negative integer frame length. Tunneled captures can emit multi-value
// IP fields ("outer,inner"); the first address wins.
func parseLine(line string) (PacketRecord, *model.CaptureError) {
	parts := strings.Fields(line)
	if len(parts) < 3 {
		return PacketRecord{}, &model.CaptureError{Kind: model.CaptureParse, Detail: "short line: " + line}
	}

	src := firstAddr(parts[0])
	dst := firstAddr(parts[1])
	if net.ParseIP(src) == nil || net.ParseIP(dst) == nil {
		return PacketRecord{}, &model.CaptureError{Kind: model.CaptureParse, Detail: "bad address: " + line}
	}

	length, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return PacketRecord{}, &model.CaptureError{Kind: model.CaptureParse, Detail: "bad length: " + line, Err: err}
	}

	return PacketRecord{SrcIP: src, DstIP: dst, Length: length}, nil
}

func firstAddr(field string) string {
	if i := strings.IndexByte(field, ','); i >= 0 {
		return field[:i]
	}
	return field
}

// isNoiseLine reports whether the line is a capture-tool runtime message that
// leaked into stdout rather than a packet record.
func isNoiseLine(line string) bool {
	return line == "" ||
		strings.HasPrefix(line, "Running as user") ||
		strings.HasPrefix(line, "Capturing on") ||
		strings.Contains(line, "packets captured")
}

// ParseOutput reads capture-tool output line by line and returns the packet
// records it could parse plus the number of malformed lines that were
// skipped. Parsing fails closed: a malformed line never aborts the window.
func ParseOutput(r io.Reader) (packets []PacketRecord, skipped int, err error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if isNoiseLine(line) {
			continue
		}
		rec, perr := parseLine(line)
		if perr != nil {
			skipped++
			continue
		}
		packets = append(packets, rec)
	}
	if err := scanner.Err(); err != nil {
		return packets, skipped, err
	}
	return packets, skipped, nil
}
