package main

import (
	"time"

	"github.com/spf13/pflag"
)

// flagReader reads typed flag values and keeps the first lookup error,
// so buildConfig can check once at the end.
type flagReader struct {
	flags *pflag.FlagSet
	err   error
}

func (r *flagReader) keep(err error) {
	if r.err == nil && err != nil {
		r.err = err
	}
}

func (r *flagReader) Int(name string) int {
	v, err := r.flags.GetInt(name)
	r.keep(err)
	return v
}

func (r *flagReader) Int64(name string) int64 {
	v, err := r.flags.GetInt64(name)
	r.keep(err)
	return v
}

func (r *flagReader) Float64(name string) float64 {
	v, err := r.flags.GetFloat64(name)
	r.keep(err)
	return v
}

func (r *flagReader) Bool(name string) bool {
	v, err := r.flags.GetBool(name)
	r.keep(err)
	return v
}

func (r *flagReader) String(name string) string {
	v, err := r.flags.GetString(name)
	r.keep(err)
	return v
}

func (r *flagReader) Duration(name string) time.Duration {
	v, err := r.flags.GetDuration(name)
	r.keep(err)
	return v
}

func (r *flagReader) StringSlice(name string) []string {
	v, err := r.flags.GetStringSlice(name)
	r.keep(err)
	return v
}

func (r *flagReader) IntSlice(name string) []int {
	v, err := r.flags.GetIntSlice(name)
	r.keep(err)
	return v
}
