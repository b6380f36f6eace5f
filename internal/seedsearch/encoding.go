package seedsearch

import (
	"fmt"
	"strconv"

	"github.com/seedprobe/seedprobe/internal/game"
)

// EncodeFunc derives the string fed into candidate construction from a
// record. Encodings are pure functions; an empty result means the encoding
// is not applicable to the record and that combination is skipped.
type EncodeFunc func(rec *game.Record) string

// timeEncoding pairs an encoding name with its function, preserving the
// configured order.
type timeEncoding struct {
	name   string
	encode EncodeFunc
}

// encodingCatalog returns the full catalog of known encodings. All
// time-derived encodings interpret the record timestamp in UTC; game_id
// uses the record identifier verbatim.
func encodingCatalog() map[string]EncodeFunc {
	fromTime := func(f func(rec *game.Record) string) EncodeFunc {
		return func(rec *game.Record) string {
			if rec.Timestamp().IsZero() {
				return ""
			}
			return f(rec)
		}
	}

	return map[string]EncodeFunc{
		"epoch": fromTime(func(rec *game.Record) string {
			return strconv.FormatInt(rec.Timestamp().Unix(), 10)
		}),
		"epoch_ms": fromTime(func(rec *game.Record) string {
			return strconv.FormatInt(rec.Timestamp().UnixMilli(), 10)
		}),
		"date": fromTime(func(rec *game.Record) string {
			return rec.Timestamp().UTC().Format("20060102")
		}),
		"time": fromTime(func(rec *game.Record) string {
			return rec.Timestamp().UTC().Format("150405")
		}),
		"datetime": fromTime(func(rec *game.Record) string {
			return rec.Timestamp().UTC().Format("20060102150405")
		}),
		"year": fromTime(func(rec *game.Record) string {
			return strconv.Itoa(rec.Timestamp().UTC().Year())
		}),
		"month": fromTime(func(rec *game.Record) string {
			return fmt.Sprintf("%02d", int(rec.Timestamp().UTC().Month()))
		}),
		"day": fromTime(func(rec *game.Record) string {
			return fmt.Sprintf("%02d", rec.Timestamp().UTC().Day())
		}),
		"hour": fromTime(func(rec *game.Record) string {
			return fmt.Sprintf("%02d", rec.Timestamp().UTC().Hour())
		}),
		"minute": fromTime(func(rec *game.Record) string {
			return fmt.Sprintf("%02d", rec.Timestamp().UTC().Minute())
		}),
		"second": fromTime(func(rec *game.Record) string {
			return fmt.Sprintf("%02d", rec.Timestamp().UTC().Second())
		}),
		"microsecond": fromTime(func(rec *game.Record) string {
			return strconv.Itoa(rec.Timestamp().UTC().Nanosecond() / 1000)
		}),
		"game_id": func(rec *game.Record) string {
			return rec.GameID
		},
	}
}

// resolveEncodings maps configured encoding names onto catalog functions,
// preserving order. Unknown names are configuration errors.
func resolveEncodings(names []string) ([]timeEncoding, error) {
	catalog := encodingCatalog()
	resolved := make([]timeEncoding, 0, len(names))
	for _, name := range names {
		fn, ok := catalog[name]
		if !ok {
			return nil, fmt.Errorf("unknown time encoding %q", name)
		}
		resolved = append(resolved, timeEncoding{name: name, encode: fn})
	}
	return resolved, nil
}
