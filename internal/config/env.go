package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// env wraps a Lookup with typed getters. Invalid values for keys with a
// default fall back to the default; must and fail record the first error.
type env struct {
	lookup Lookup
	err    error
}


func (e *env) get(k string) string {
	if e.lookup == nil {
		return ""
	}
	v, _ := e.lookup(k)
	return strings.TrimSpace(v)
}

func (e *env) fail(k, v string) {
	if e.err == nil {
		e.err = fmt.Errorf("invalid value for %s: %q", k, v)
	}
}

func (e *env) must(k string) string {
	v := e.get(k)
	if v == "" && e.err == nil {
		e.err = fmt.Errorf("missing required env var: %s", k)
	}
	return v
}

func (e *env) str(k, d string) string {
	if v := e.get(k); v != "" {
		return v
	}
	return d
}

func (e *env) flag(k string, d bool) bool {
	switch strings.ToLower(e.get(k)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func (e *env) num(k string, d int) int {
	v := e.get(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func (e *env) dur(k string, d time.Duration) time.Duration {
	v := e.get(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}

func (e *env) methods(k, d string) map[string]bool {
	m := map[string]bool{}
	for _, p := range strings.Split(e.str(k, d), ",") {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			m[p] = true
		}
	}
	return m
}
