// Copyright ©2015 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streammd/streammd/bloom"
)

func runPipeline(t *testing.T, input string, workers int) (string, uint64, uint64) {
	t.Helper()
	f := bloom.New(1000, 1e-6)
	var out bytes.Buffer
	counters, err := Run(context.Background(), Config{Filter: f, Workers: workers}, strings.NewReader(input), &out)
	require.NoError(t, err)
	return out.String(), counters.Templates, counters.TemplatesDuplicate
}

func TestHeaderPassthrough(t *testing.T) {
	input := "@HD\tVN:1.6\n" +
		"r1\t0\tchr1\t100\t60\t100M\tchr1\t0\t0\tACGT\tIIII\n"
	out, _, _ := runPipeline(t, input, 1)
	assert.True(t, strings.HasPrefix(out, "@HD\tVN:1.6\n"))
}

func TestSingleEndDuplicateMarkedOnSecondOccurrence(t *testing.T) {
	input := "r1\t0\tchr1\t100\t60\t100M\tchr1\t0\t0\tACGT\tIIII\n" +
		"r2\t0\tchr1\t100\t60\t100M\tchr1\t0\t0\tACGT\tIIII\n"
	out, templates, dups := runPipeline(t, input, 1)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 2)
	firstFlag := fieldsOf(lines[0])[1]
	secondFlag := fieldsOf(lines[1])[1]
	assert.Equal(t, "0", firstFlag)
	assert.Equal(t, "1024", secondFlag)
	assert.EqualValues(t, 2, templates)
	assert.EqualValues(t, 1, dups)
}

func TestUnmappedTemplateSkipped(t *testing.T) {
	input := "r1\t4\t*\t0\t0\t*\t*\t0\t0\tACGT\tIIII\n"
	out, _, dups := runPipeline(t, input, 1)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 1)
	assert.Equal(t, "4", fieldsOf(lines[0])[1])
	assert.EqualValues(t, 0, dups)
}

func TestSecondaryInheritsPrimaryDuplicateDecision(t *testing.T) {
	input := "r1\t0\tchr1\t100\t60\t100M\tchr1\t0\t0\tACGT\tIIII\n" +
		"r2\t0\tchr1\t100\t60\t100M\tchr1\t0\t0\tACGT\tIIII\n" +
		"r2\t256\tchr2\t500\t60\t100M\tchr1\t0\t0\tACGT\tIIII\n"
	out, _, _ := runPipeline(t, input, 1)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "1024", fieldsOf(lines[1])[1])
	assert.Equal(t, "1280", fieldsOf(lines[2])[1], "secondary (256) + duplicate (1024) = 1280")
}

func TestWithinBatchOrderPreserved(t *testing.T) {
	input := "r1\t0\tchr1\t100\t60\t100M\tchr1\t0\t0\tACGT\tIIII\n" +
		"r1\t256\tchr2\t500\t60\t100M\tchr1\t0\t0\tACGT\tIIII\n"
	out, _, _ := runPipeline(t, input, 1)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "r1", fieldsOf(lines[0])[0])
	assert.Equal(t, "0", fieldsOf(lines[0])[1])
	assert.Equal(t, "256", fieldsOf(lines[1])[1])
}

func TestOutOfOrderQNameIsFatal(t *testing.T) {
	input := "r1\t0\tchr1\t100\t60\t100M\tchr1\t0\t0\tACGT\tIIII\n" +
		"r2\t0\tchr1\t200\t60\t100M\tchr1\t0\t0\tACGT\tIIII\n" +
		"r1\t0\tchr1\t100\t60\t100M\tchr1\t0\t0\tACGT\tIIII\n"
	f := bloom.New(1000, 1e-6)
	var out bytes.Buffer
	_, err := Run(context.Background(), Config{Filter: f, Workers: 1}, strings.NewReader(input), &out)
	require.Error(t, err)
}

func fieldsOf(line string) []string {
	return strings.Split(line, "\t")
}
