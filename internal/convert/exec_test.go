package convert

import (
	"reflect"
	"testing"
	"time"

	"github.com/zenithu-s/book-downloader/internal/config"
	"github.com/zenithu-s/book-downloader/internal/testutil"
)

func TestExecConverterAvailability(t *testing.T) {
	present := &execConverter{name: "calibre", binary: "/usr/bin/ebook-convert"}
	if !present.Available() {
		t.Error("converter with resolved binary reports unavailable")
	}

	missing := &execConverter{name: "pandoc"}
	if missing.Available() {
		t.Error("converter without binary reports available")
	}
}

func TestConverterCommandLines(t *testing.T) {
	cfg := config.ConvertConfig{Timeout: time.Second}

	cal := newCalibreConverter(cfg, testutil.NopLogger())
	if got, want := cal.args("in.epub", "out.pdf"), []string{"in.epub", "out.pdf"}; !reflect.DeepEqual(got, want) {
		t.Errorf("calibre args = %v, want %v", got, want)
	}

	pan := newPandocConverter(cfg, testutil.NopLogger())
	if got, want := pan.args("in.epub", "out.pdf"), []string{"in.epub", "-o", "out.pdf"}; !reflect.DeepEqual(got, want) {
		t.Errorf("pandoc args = %v, want %v", got, want)
	}
}
