package logging

import "time"

func String(key, value string) Field             { return Field{Key: key, Value: value} }
func Int(key string, value int) Field            { return Field{Key: key, Value: value} }
func Int64(key string, value int64) Field        { return Field{Key: key, Value: value} }
func Float64(key string, value float64) Field    { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field          { return Field{Key: key, Value: value} }
func Any(key string, value any) Field            { return Field{Key: key, Value: value} }
func Duration(key string, d time.Duration) Field { return Field{Key: key, Value: d.String()} }

// Error records err under the "error" key; nil errors are kept as null.
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Domain helpers

func Component(name string) Field   { return String("component", name) }
func Analysis(name string) Field    { return String("analysis", name) }
func NodeID(id string) Field        { return String("node_id", id) }
func EdgeID(id string) Field        { return String("edge_id", id) }
func Fingerprint(fp string) Field   { return String("fingerprint", fp) }
func JobID(id string) Field         { return String("job_id", id) }
func Percent(p int) Field           { return Int("percent", p) }
func Count(n int) Field             { return Int("count", n) }
func Latency(d time.Duration) Field { return Duration("latency", d) }

// Pair records an ordered source/destination pair.
func Pair(src, dst string) Field {
	return Field{Key: "pair", Value: src + "->" + dst}
}
