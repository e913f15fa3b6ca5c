package builder

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	derrors "git.home.luguber.info/inful/dmbuild/internal/foundation/errors"
)

func TestPipelineOutputEqualsLastStage(t *testing.T) {
	env := newTestEnv(t, lookAll, fakeClasses()...)
	in := writeSource(t, env, "notes.txt", "hello pipeline")
	b, err := env.New("UpperCopy", Options{Params: []Param{FileParam(in)}, Target: "out"})
	require.NoError(t, err)
	seq, ok := b.(*Sequential)
	require.True(t, ok)

	subs := seq.Subbuilders()
	require.Len(t, subs, 3)
	require.Equal(t, CopyClass, subs[2].Name(), "an implicit copy ends the pipeline")

	st, err := seq.Status()
	require.NoError(t, err)
	require.Equal(t, StatusReady, st)
	st, err = subs[1].Status()
	require.NoError(t, err)
	require.Equal(t, StatusMissingParameters, st, "later stage input does not exist yet")

	st, err = seq.Build(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, StatusDone, st)

	out, err := seq.Outfile()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(env.TargetRoot, "out", "notes.fin"), out.String())

	last, err := subs[1].Outfile()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(last.String(), env.CachePath()), "intermediates live in the cache")
	require.Equal(t, readFile(t, last.String()), readFile(t, out.String()))
	require.Equal(t, "HELLO PIPELINE", readFile(t, out.String()))
	require.EqualValues(t, 1, env.Runner.Spawned())
}

func TestPipelineSecondRunSpawnsNothing(t *testing.T) {
	env := newTestEnv(t, lookAll, fakeClasses()...)
	in := writeSource(t, env, "notes.txt", "again")
	opts := Options{Params: []Param{FileParam(in)}, Target: "out"}

	first, err := env.New("UpperCopy", opts)
	require.NoError(t, err)
	st, err := first.Build(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, StatusDone, st)
	spawned := env.Runner.Spawned()

	second, err := env.New("UpperCopy", opts)
	require.NoError(t, err)
	st, err = second.Status()
	require.NoError(t, err)
	require.Equal(t, StatusDone, st)
	st, err = second.Build(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, StatusDone, st)
	require.Equal(t, spawned, env.Runner.Spawned())

	needed, err := second.BuildNeeded()
	require.NoError(t, err)
	require.False(t, needed)
}

func TestPipelineStepsKeepTheirDecisions(t *testing.T) {
	env := newTestEnv(t, lookAll, fakeClasses()...)
	in := writeSource(t, env, "notes.txt", "kept")
	opts := Options{Params: []Param{FileParam(in)}, Target: "out"}

	b, err := env.New("UpperCopy", opts)
	require.NoError(t, err)
	_, err = b.Build(context.Background(), true)
	require.NoError(t, err)

	seq, ok := b.(*Sequential)
	require.True(t, ok)
	subs := seq.Subbuilders()
	last, err := subs[len(subs)-1].Outfile()
	require.NoError(t, err)
	out, err := seq.Outfile()
	require.NoError(t, err)
	require.Equal(t, out, last, "the trailing copy writes the pipeline output")

	for _, sub := range subs {
		needed, err := sub.BuildNeeded()
		require.NoError(t, err)
		require.False(t, needed, "%s after a complete build", sub.Name())
	}

	again, err := env.New("UpperCopy", opts)
	require.NoError(t, err)
	for _, sub := range again.(*Sequential).Subbuilders() {
		st, err := sub.Status()
		require.NoError(t, err)
		require.Equal(t, StatusDone, st, sub.Name())
	}
}

func TestPipelineRejectsDisconnectedStages(t *testing.T) {
	bad := &Class{
		Name: "Disconnected", InExt: ".txt", OutExt: ".mid",
		Priority: 1, RequiredExecs: []string{}, Available: true, Action: "bad",
		New: func(env *Env, c *Class, opts Options) (Builder, error) {
			return NewPipeline(env, c, opts, Stage{Class: "Upper"}, Stage{Class: "Upper"})
		},
	}
	wrongOut := &Class{
		Name: "WrongOut", InExt: ".txt", OutExt: ".pdf",
		Priority: 1, RequiredExecs: []string{}, Available: true, Action: "bad",
		New: func(env *Env, c *Class, opts Options) (Builder, error) {
			return NewPipeline(env, c, opts, Stage{Class: "Upper"})
		},
	}
	env := newTestEnv(t, lookAll, append(fakeClasses(), bad, wrongOut)...)
	in := writeSource(t, env, "notes.txt", "x")

	_, err := env.New("Disconnected", Options{Params: []Param{FileParam(in)}})
	require.True(t, derrors.IsBuildError(err))
	_, err = env.New("WrongOut", Options{Params: []Param{FileParam(in)}})
	require.True(t, derrors.IsBuildError(err))
}

func TestPipelineStopsOnStageFailure(t *testing.T) {
	fail := &Class{
		Name: "FailMid", InExt: ".mid", OutExt: ".fin",
		Priority: 1, RequiredExecs: []string{"false"}, Available: true,
		Action: "false {builder.infilepath}",
	}
	pipe := &Class{
		Name: "UpperFail", InExt: ".txt", OutExt: ".fin",
		Priority: 1, RequiredExecs: []string{}, Available: true, Action: "upper-fail",
		New: func(env *Env, c *Class, opts Options) (Builder, error) {
			return NewPipeline(env, c, opts, Stage{Class: "Upper"}, Stage{Class: "FailMid"})
		},
	}
	env := newTestEnv(t, lookAll, append(fakeClasses(), fail, pipe)...)
	in := writeSource(t, env, "notes.txt", "x")
	b, err := env.New("UpperFail", Options{Params: []Param{FileParam(in)}, Target: "out"})
	require.NoError(t, err)

	st, err := b.Build(context.Background(), true)
	require.Error(t, err)
	require.Equal(t, StatusMissingOutput, st)
	out, oerr := b.Outfile()
	require.NoError(t, oerr)
	require.NoFileExists(t, out.String())
}

func newTestParallel(t *testing.T, env *Env) *Parallel {
	t.Helper()
	b, err := env.New(ParallelClass, Options{})
	require.NoError(t, err)
	p, ok := b.(*Parallel)
	require.True(t, ok)
	return p
}

func TestParallelInactiveWins(t *testing.T) {
	env := newTestEnv(t, lookExcept("cp"), fakeClasses()...)
	txt := writeSource(t, env, "a.txt", "a")
	mid := writeSource(t, env, "b.mid", "b")

	p := newTestParallel(t, env)
	p.Add(newLeaf(t, env, "Upper", Options{Params: []Param{FileParam(txt)}}))
	p.Add(newLeaf(t, env, "Cp", Options{Params: []Param{FileParam(mid)}}))
	p.Add(newLeaf(t, env, "Upper", Options{}))

	st, err := p.Status()
	require.NoError(t, err)
	require.Equal(t, StatusInactive, st)
}

func TestParallelAggregation(t *testing.T) {
	env := newTestEnv(t, lookAll, fakeClasses()...)
	txt := writeSource(t, env, "a.txt", "a")

	empty := newTestParallel(t, env)
	st, err := empty.Status()
	require.NoError(t, err)
	require.Equal(t, StatusDone, st)

	p := newTestParallel(t, env)
	p.Add(newLeaf(t, env, "Upper", Options{Params: []Param{FileParam(txt)}}))
	st, err = p.Status()
	require.NoError(t, err)
	require.Equal(t, StatusReady, st)

	p.Add(newLeaf(t, env, "Upper", Options{}))
	st, err = p.Status()
	require.NoError(t, err)
	require.Equal(t, StatusMissingParameters, st)
}

func TestParallelDeduplicatesOutputs(t *testing.T) {
	env := newTestEnv(t, lookAll)
	css := writeSource(t, env, "site.css", "body{}")
	p := newTestParallel(t, env)

	first, err := p.AddBuild("", "", "html", Options{Params: []Param{FileParam(css)}, Target: "html"})
	require.NoError(t, err)
	require.Equal(t, CopyClass, first.Name())
	second, err := p.AddBuild("", "", "html", Options{Params: []Param{FileParam(css)}, Target: "html"})
	require.NoError(t, err)
	require.Same(t, first, second)
	require.Len(t, p.Subbuilders(), 1)
	require.Len(t, p.Outfiles(), 1)
}

func TestParallelStartsAllReadyWithinPoolLimit(t *testing.T) {
	script := filepath.Join(t.TempDir(), "slowcp")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nsleep 0.2\ncp \"$1\" \"$2\"\n"), 0o700)) // #nosec G306 -- test script
	slow := &Class{
		Name: "SlowCp", InExt: ".mid", OutExt: ".fin",
		Priority: 1, RequiredExecs: []string{}, Available: true,
		Action: script + " {builder.infilepath} {builder.outfilepath}",
	}
	env := newTestEnv(t, lookAll, slow)
	env.Runner = NewRunner(1, WithPollInterval(10*time.Millisecond))

	p := newTestParallel(t, env)
	var leaves []*Leaf
	for _, name := range []string{"a.mid", "b.mid"} {
		in := writeSource(t, env, name, name)
		l := newLeaf(t, env, "SlowCp", Options{Params: []Param{FileParam(in)}, Target: "out"})
		p.Add(l)
		leaves = append(leaves, l)
	}

	st, err := p.Build(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, StatusBuilding, st)
	require.IsType(t, Running{}, leaves[0].State())
	require.Equal(t, NotStarted{}, leaves[1].State(), "no free slot leaves the builder ready")

	st, err = p.Build(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, StatusDone, st)
	for _, out := range p.Outfiles() {
		require.FileExists(t, out.String())
	}
	require.EqualValues(t, 2, env.Runner.Spawned())
}
