package sniff

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"fiscaletl/internal/ingesterr"
)

func TestStripNoise(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []byte
		want []byte
	}{
		{"bom", []byte("\xEF\xBB\xBF<a/>"), []byte("<a/>")},
		{"control prefix", []byte("\x00\x01junk<a/>"), []byte("<a/>")},
		{"newline prefix", []byte("\n\n<a/>"), []byte("<a/>")},
		{"bom then control", []byte("\xEF\xBB\xBF\x02<a/>"), []byte("<a/>")},
		{"printable prefix kept", []byte("abc<a/>"), []byte("abc<a/>")},
		{"no angle bracket", []byte("\x01abc"), []byte("\x01abc")},
		{"already clean", []byte("<a/>"), []byte("<a/>")},
		{"empty", nil, nil},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := StripNoise(tt.in); !bytes.Equal(got, tt.want) {
				t.Fatalf("StripNoise(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDetectFalseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Format
	}{
		{"<!DOCTYPE html><html></html>", FormatHTML},
		{"  <HTML lang=pt>", FormatHTML},
		{`{"a":1}`, FormatJSON},
		{"\n[1,2]", FormatJSON},
		{"PK\x03\x04rest", FormatZIP},
		{"%PDF-1.7", FormatPDF},
		{`<?xml version="1.0"?><a/>`, FormatNone},
		{"<nfeProc/>", FormatNone},
		{"", FormatNone},
		{"pk lowercase", FormatNone},
	}

	for _, tt := range tests {
		if got := DetectFalseFormat([]byte(tt.in)); got != tt.want {
			t.Fatalf("DetectFalseFormat(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCleanHTMLMismatch(t *testing.T) {
	t.Parallel()

	page := []byte("<!DOCTYPE html>\n<html><head><title> Sessão   expirada </title></head><body/></html>")
	out, err := Clean(page)
	if out != nil {
		t.Fatalf("Clean must not return bytes on mismatch")
	}

	var fm *ingesterr.FormatMismatchError
	if !errors.As(err, &fm) {
		t.Fatalf("Clean error = %v, want FormatMismatchError", err)
	}
	if fm.Detected != "HTML" {
		t.Fatalf("Detected = %q, want HTML", fm.Detected)
	}
	if !strings.Contains(err.Error(), "Sessão expirada") {
		t.Fatalf("error should carry the page title: %q", err.Error())
	}
	if ingesterr.KindOf(err) != ingesterr.KindFormatMismatch {
		t.Fatalf("KindOf = %v", ingesterr.KindOf(err))
	}
}

func TestCleanPassesXML(t *testing.T) {
	t.Parallel()

	out, err := Clean([]byte("\xEF\xBB\xBF<Envio/>"))
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if string(out) != "<Envio/>" {
		t.Fatalf("Clean = %q", out)
	}

	res := Sniff([]byte("%PDF-1.4"))
	if res.Format != FormatPDF {
		t.Fatalf("Sniff format = %v", res.Format)
	}
}
