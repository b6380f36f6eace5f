package game

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/seedprobe/seedprobe/pkg/errors"
)

// maxIssueSample caps how many parse errors are retained for the report;
// the skip counter is always exact.
const maxIssueSample = 10

// maxLineBytes bounds a single NDJSON line.
const maxLineBytes = 1 << 20

// ParseIssue describes one skipped input record.
type ParseIssue struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// DecodeResult is the outcome of decoding an input stream: the records that
// parsed, the exact count of records skipped as malformed, and a bounded
// sample of the reasons.
type DecodeResult struct {
	Records []Record
	Skipped int
	Issues  []ParseIssue
}

func (d *DecodeResult) addIssue(line int, err error) {
	d.Skipped++
	if len(d.Issues) < maxIssueSample {
		d.Issues = append(d.Issues, ParseIssue{Line: line, Message: err.Error()})
	}
}

// Decode reads game records from r, accepting either newline-delimited JSON
// (one record per line) or a single JSON array of records. Malformed lines
// or array elements are skipped and counted, never fatal; only an unreadable
// stream or an unparsable array document fails the decode (spec: a broken
// record is survivable, a broken file is not).
func Decode(r io.Reader) (*DecodeResult, error) {
	br := bufio.NewReaderSize(r, 64*1024)

	first, err := firstNonSpace(br)
	if err == io.EOF {
		return &DecodeResult{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeParse, "decode_records", "failed to read input stream")
	}

	if first == '[' {
		return decodeArray(br)
	}
	return decodeLines(br)
}

// firstNonSpace peeks past leading whitespace without consuming it.
func firstNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			if err := br.UnreadByte(); err != nil {
				return 0, err
			}
			return b, nil
		}
	}
}

// decodeArray decodes a single JSON array document. The document itself
// must be valid JSON; individual elements that fail to decode as records
// are skipped and counted.
func decodeArray(r io.Reader) (*DecodeResult, error) {
	var elements []json.RawMessage
	if err := json.NewDecoder(r).Decode(&elements); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeParse, "decode_records", "input is not a valid JSON array")
	}

	result := &DecodeResult{Records: make([]Record, 0, len(elements))}
	for i, raw := range elements {
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			result.addIssue(i+1, fmt.Errorf("element %d: %w", i+1, err))
			continue
		}
		result.Records = append(result.Records, rec)
	}
	return result, nil
}

// decodeLines decodes newline-delimited JSON, one record per line. Blank
// lines are ignored.
func decodeLines(r io.Reader) (*DecodeResult, error) {
	result := &DecodeResult{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			result.addIssue(line, err)
			continue
		}
		result.Records = append(result.Records, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeParse, "decode_records", "failed to read input stream")
	}
	return result, nil
}
