// Package webaccess parses Apache and Nginx access logs in the common and
// combined formats into JSON records.
package webaccess

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// timeLayout matches the CLF timestamp, e.g. "10/Oct/2000:13:55:36 -0700".
const timeLayout = "02/Jan/2006:15:04:05 -0700"

var (
	reCombined = regexp.MustCompile(`^(?P<ip>\S+) (?P<ident>\S+) (?P<user>\S+) \[(?P<time>[^\]]+)\] "(?P<request>[^"]*)" (?P<status>\d{3}|-) (?P<size>\S+) "(?P<referer>[^"]*)" "(?P<agent>[^"]*)"$`)
	reCommon   = regexp.MustCompile(`^(?P<ip>\S+) (?P<ident>\S+) (?P<user>\S+) \[(?P<time>[^\]]+)\] "(?P<request>[^"]*)" (?P<status>\d{3}|-) (?P<size>\S+)$`)
)

// Options configures a Parser.
type Options struct {
	// FastTime skips timestamp normalization; the raw timestamp is still
	// emitted in ts_raw.
	FastTime bool
}

// Parser implements the multiparse.Parser contract for access logs.  It
// holds only compiled patterns and is safe for concurrent use.
type Parser struct {
	fastTime bool
}

// New builds an access log parser.
func New(opts Options) *Parser {
	return &Parser{fastTime: opts.FastTime}
}

func (p *Parser) Name() string { return "web-access" }

func (p *Parser) Description() string {
	return "Parses Apache/Nginx access logs (common/combined) -> JSONL"
}

// record is the emitted JSON shape.  Fields equal to "-" in the log are
// left out rather than emitted as empty strings.
type record struct {
	IP        string `json:"ip,omitempty"`
	Ident     string `json:"ident,omitempty"`
	User      string `json:"user,omitempty"`
	TS        string `json:"ts,omitempty"`
	TSRaw     string `json:"ts_raw,omitempty"`
	Method    string `json:"method,omitempty"`
	Target    string `json:"target,omitempty"`
	Path      string `json:"path,omitempty"`
	Query     string `json:"query,omitempty"`
	Protocol  string `json:"protocol,omitempty"`
	Status    *int64 `json:"status,omitempty"`
	Bytes     *int64 `json:"bytes,omitempty"`
	Referer   string `json:"referer,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	Raw       string `json:"raw"`
}

// AppendLine parses one log line and appends the serialized record to dst.
// Blank lines and lines matching neither format are declined.
func (p *Parser) AppendLine(dst []byte, line string) ([]byte, bool) {
	rec, ok := p.parseLine(line)
	if !ok {
		return dst, false
	}
	buf, err := json.Marshal(&rec)
	if err != nil {
		return dst, false
	}
	return append(dst, buf...), true
}

func (p *Parser) parseLine(line string) (record, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return record{}, false
	}
	re := reCombined
	m := re.FindStringSubmatch(line)
	if m == nil {
		re = reCommon
		m = re.FindStringSubmatch(line)
	}
	if m == nil {
		return record{}, false
	}
	group := func(name string) string {
		if i := re.SubexpIndex(name); i >= 0 && i < len(m) {
			return m[i]
		}
		return ""
	}

	rec := record{
		IP:        group("ip"),
		Ident:     dashless(group("ident")),
		User:      dashless(group("user")),
		TSRaw:     group("time"),
		Status:    parseInt(group("status")),
		Bytes:     parseInt(group("size")),
		Referer:   dashless(group("referer")),
		UserAgent: dashless(group("agent")),
		Raw:       line,
	}
	if !p.fastTime {
		rec.TS = normalizeTime(rec.TSRaw)
	}
	rec.Method, rec.Target, rec.Path, rec.Query, rec.Protocol = parseRequest(group("request"))
	return rec, true
}

// parseRequest splits the quoted request into method, target, path, query
// and protocol.  Requests with fewer than three fields are filled in best
// effort; a target containing spaces is kept whole.
func parseRequest(req string) (method, target, path, query, protocol string) {
	if req == "" || req == "-" {
		return
	}
	parts := strings.Split(req, " ")
	switch n := len(parts); {
	case n >= 3:
		method = parts[0]
		protocol = parts[n-1]
		target = strings.Join(parts[1:n-1], " ")
	case n == 2:
		method = parts[0]
		target = parts[1]
	default:
		target = parts[0]
	}

	switch {
	case target == "":
	case target == "*":
		path = "*"
	default:
		if i := strings.IndexByte(target, '?'); i >= 0 {
			path = target[:i]
			query = target[i+1:]
		} else {
			path = target
		}
	}
	return
}

// normalizeTime converts a CLF timestamp to RFC 3339 in UTC, or returns ""
// if it does not parse.
func normalizeTime(raw string) string {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func dashless(s string) string {
	if s == "-" {
		return ""
	}
	return s
}

func parseInt(s string) *int64 {
	if s == "" || s == "-" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}
