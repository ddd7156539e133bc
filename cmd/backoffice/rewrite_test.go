package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRewriteCommand_stdin(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetIn(strings.NewReader("#EXTM3U\n#EXTINF:6,\nseg0.ts\n"))
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"rewrite", "--url", "http://cdn.example.com/live/index.m3u8", "--prefix", "/p", "-"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatal(err)
	}
	want := "#EXTM3U\n#EXTINF:6,\n/p?url=http%3A%2F%2Fcdn.example.com%2Flive%2Fseg0.ts\n"
	if out.String() != want {
		t.Errorf("got %q\nwant %q", out.String(), want)
	}
}

func TestRewriteCommand_requiresURL(t *testing.T) {
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"rewrite", "--url", ""})
	if err := rootCmd.Execute(); err == nil {
		t.Error("missing --url accepted")
	}
}
