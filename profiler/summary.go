package profiler

import "go.uber.org/zap/zapcore"

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (s Summary) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("samples", s.Samples)
	enc.AddFloat64("mean", s.Mean)
	enc.AddFloat64("std_dev", s.StdDev)
	enc.AddFloat64("min", s.Min)
	enc.AddFloat64("max", s.Max)
	enc.AddFloat64("p50", s.P50)
	enc.AddFloat64("p95", s.P95)
	return nil
}
