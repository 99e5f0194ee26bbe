package env

import (
	"reflect"
	"strings"
	"testing"
)

func TestComposeOverridesAndAppends(t *testing.T) {
	base := []string{"HOME=/home/u", "PATH=/bin", "LANG=C"}
	got := Compose(base, []string{"PATH=/opt/app/bin:${PATH}", "APP_HOME=${HOME}/.app", "LANG=es_ES.UTF-8"})
	want := []string{"HOME=/home/u", "PATH=/opt/app/bin:/bin", "LANG=es_ES.UTF-8", "APP_HOME=/home/u/.app"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Compose = %v, want %v", got, want)
	}
}

func TestComposeChainsExtras(t *testing.T) {
	got := Compose(nil, []string{"A=1", "B=${A}-x", "C=${B}-y"})
	want := []string{"A=1", "B=1-x", "C=1-x-y"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Compose = %v, want %v", got, want)
	}
}

func TestComposeSkipsMalformed(t *testing.T) {
	got := Compose([]string{"=bad", "OK=1"}, []string{"novalue", "=x", "K=v"})
	for _, kv := range got {
		if !strings.Contains(kv, "=") || strings.HasPrefix(kv, "=") {
			t.Fatalf("bad pair in output: %q", kv)
		}
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 pairs, got %v", got)
	}
}

func TestExpand(t *testing.T) {
	vars := map[string]string{"A": "1"}
	cases := map[string]string{
		"plain":       "plain",
		"${A}":        "1",
		"x${A}y${A}":  "x1y1",
		"${MISSING}z": "z",
		"open ${A":    "open ${A",
		"$A":          "$A",
	}
	for in, want := range cases {
		if got := Expand(in, vars); got != want {
			t.Fatalf("Expand(%q) = %q, want %q", in, got, want)
		}
	}
}

func FuzzCompose(f *testing.F) {
	f.Add("A=1\nB=${A}-x", "C=${B}-y")
	f.Add("FOO=bar", "FOO=${FOO}")
	f.Add("X=$Y", "Y=${X")
	f.Fuzz(func(t *testing.T, base, extra string) {
		out := Compose(strings.Split(base, "\n"), strings.Split(extra, "\n"))
		seen := map[string]bool{}
		for _, kv := range out {
			k, _, ok := strings.Cut(kv, "=")
			if !ok || k == "" {
				t.Fatalf("bad pair: %q", kv)
			}
			if seen[k] {
				t.Fatalf("duplicate key %q in %v", k, out)
			}
			seen[k] = true
		}
	})
}
