package decider

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestBuildNeededRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.tex")
	out := filepath.Join(dir, "out.pdf")
	writeFile(t, in, "\\documentclass{article}")
	inputs := []Input{FileInput(in), TextInput("--shell-escape")}
	action := "pdflatex {builder.infilepaths}"

	d := New(nil)

	needed, err := d.BuildNeeded(inputs, action, out, false)
	require.NoError(t, err)
	require.True(t, needed, "fresh output must need a build")

	writeFile(t, out, "%PDF-1.5")
	needed, err = d.BuildNeeded(inputs, action, out, true)
	require.NoError(t, err)
	require.False(t, needed, "reset always reports no build needed")

	needed, err = d.BuildNeeded(inputs, action, out, false)
	require.NoError(t, err)
	require.False(t, needed)

	writeFile(t, in, "\\documentclass{report} changed")
	needed, err = d.BuildNeeded(inputs, action, out, false)
	require.NoError(t, err)
	require.True(t, needed, "changed input must flip the decision")
}

func TestBuildNeededMissingOutput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "a.txt")
	out := filepath.Join(dir, "b.txt")
	writeFile(t, in, "a")

	d := New(NewMemoryStore())
	_, err := d.BuildNeeded([]Input{FileInput(in)}, "", out, true)
	require.NoError(t, err)

	needed, err := d.BuildNeeded([]Input{FileInput(in)}, "", out, false)
	require.NoError(t, err)
	require.True(t, needed, "unchanged hash without output still needs a build")
}

func TestBuildNeededActionAndMissingInput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "a.txt")
	out := filepath.Join(dir, "b.txt")
	writeFile(t, in, "a")
	writeFile(t, out, "b")

	d := New(nil)
	_, err := d.BuildNeeded([]Input{FileInput(in)}, "cp", out, true)
	require.NoError(t, err)

	needed, err := d.BuildNeeded([]Input{FileInput(in)}, "cat", out, false)
	require.NoError(t, err)
	require.True(t, needed, "different action must need a build")

	needed, err = d.BuildNeeded([]Input{FileInput(filepath.Join(dir, "gone.txt"))}, "cp", out, false)
	require.NoError(t, err)
	require.True(t, needed)
}

func TestHashOrderIndependent(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.css")
	b := filepath.Join(dir, "b.css")
	writeFile(t, a, "body{}")
	writeFile(t, b, "p{}")

	d := New(nil)
	h1, err := d.Hash([]Input{FileInput(a), FileInput(b), TextInput("x")}, "act")
	require.NoError(t, err)
	h2, err := d.Hash([]Input{TextInput("x"), FileInput(b), FileInput(a)}, "act")
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}

func TestPDFHashIgnoresVolatileMetadata(t *testing.T) {
	dir := t.TempDir()
	body := "%PDF-1.5\n1 0 obj\n<< /Type /Catalog >>\nendobj\n"
	a := filepath.Join(dir, "a.pdf")
	b := filepath.Join(dir, "b.pdf")
	c := filepath.Join(dir, "c.pdf")
	writeFile(t, a, body+"/CreationDate (D:20200101000000Z)\n/ModDate (D:20200101000000Z)\n/ID [<aa><bb>]\n")
	writeFile(t, b, body+"/CreationDate (D:20241231235959Z)\n/ModDate (D:20241231235959Z)\n/ID [<cc><dd>]\n")
	writeFile(t, c, body+"/CreationDate (D:20200101000000Z)\n/ModDate (D:20200101000000Z)\n/ID [<aa><bb>]\n/Producer (x)\n")

	ha, err := HashFile(a)
	require.NoError(t, err)
	hb, err := HashFile(b)
	require.NoError(t, err)
	hc, err := HashFile(c)
	require.NoError(t, err)

	require.Equal(t, ha, hb)
	require.NotEqual(t, ha, hc)
}

func TestNonPDFHashSensitiveToMetadataLines(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	writeFile(t, a, "/CreationDate 1\n")
	writeFile(t, b, "/CreationDate 2\n")

	ha, err := HashFile(a)
	require.NoError(t, err)
	hb, err := HashFile(b)
	require.NoError(t, err)
	require.NotEqual(t, ha, hb)
}

func TestShortHash(t *testing.T) {
	require.Len(t, ShortHash(1, 0), 16)
	require.Equal(t, "0000000000", ShortHash(1, 10))
	require.Equal(t, ShortHash(HashText("abc"), 8), ShortHash(HashText("abc"), 8))
}

func TestBuildNeededAsKeepsKeysApart(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.txt")
	out := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(in, []byte("a"), 0o600))
	require.NoError(t, os.WriteFile(out, []byte("a"), 0o600))
	d := New(NewMemoryStore())
	inputs := []Input{FileInput(in)}

	_, err := d.BuildNeeded(inputs, "cp", out, true)
	require.NoError(t, err)
	_, err = d.BuildNeededAs(out+"#Chain", inputs, "chain", out, true)
	require.NoError(t, err)

	needed, err := d.BuildNeeded(inputs, "cp", out, false)
	require.NoError(t, err)
	require.False(t, needed, "recording under another key leaves the step record intact")
	needed, err = d.BuildNeededAs(out+"#Chain", inputs, "chain", out, false)
	require.NoError(t, err)
	require.False(t, needed)

	require.NoError(t, os.Remove(out))
	needed, err = d.BuildNeededAs(out+"#Chain", inputs, "chain", out, false)
	require.NoError(t, err)
	require.True(t, needed, "existence is checked on the output, not the key")
}
