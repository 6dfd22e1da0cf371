// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package aggregate

import (
	"path"
	"regexp"
	"strings"
)

const (
	// All replaces the cut type or focal plane when the matching selector is unfiltered.
	All = "All"
	// Unfiltered is the selector value that disables a filter.
	Unfiltered = "-1"
)

var (
	progressRe   = regexp.MustCompile(`^\s*\d+(\.\d+)? % done`)
	runNumberRe  = regexp.MustCompile(`Run Number: (\d+)`)
	cutTypeRe    = regexp.MustCompile(`Loaded (\S+) cut for FocalPlane (\d+)`)
	outputFileRe = regexp.MustCompile(`output file: (\S+)`)
)

// counter is one "Cut Applied" or "Total" line of the output.
type counter struct {
	kind    string // "Cut Applied" or "Total"
	nucleus string // "50Ca20" or "49K19"
	pid     string // "2" or "5"
}

func (c counter) pattern() *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(c.kind+" "+c.nucleus+" in PID "+c.pid+":") + `\s+(\d+)`)
}

var (
	applied50CaPID2 = counter{"Cut Applied", "50Ca20", "2"}.pattern()
	total50CaPID2   = counter{"Total", "50Ca20", "2"}.pattern()
	applied49KPID2  = counter{"Cut Applied", "49K19", "2"}.pattern()
	total49KPID2    = counter{"Total", "49K19", "2"}.pattern()
	applied50CaPID5 = counter{"Cut Applied", "50Ca20", "5"}.pattern()
	total50CaPID5   = counter{"Total", "50Ca20", "5"}.pattern()
	applied49KPID5  = counter{"Cut Applied", "49K19", "5"}.pattern()
	total49KPID5    = counter{"Total", "49K19", "5"}.pattern()
)

// Selectors are the sweep parameters of the unit the output belongs to.
type Selectors struct {
	Cut        string // lcx
	FocalPlane string // fid
}

// StripProgress removes "NN.N % done" progress lines.
// Carriage returns count as line breaks so in-place progress counters are removed too.
func StripProgress(output string) string {
	output = strings.ReplaceAll(output, "\r\n", "\n")
	output = strings.ReplaceAll(output, "\r", "\n")

	lines := strings.Split(output, "\n")
	kept := lines[:0]

	for _, l := range lines {
		if progressRe.MatchString(l) {
			continue
		}

		kept = append(kept, l)
	}

	return strings.Join(kept, "\n")
}

// Extract builds the record of one unit from its captured output.
func Extract(label string, output string, sel Selectors) Record {
	text := StripProgress(output)

	rec := Record{
		Run:         label,
		RunNbr:      find(runNumberRe, text),
		CutType:     Missing,
		FocalPlane:  Missing,
		Applied50Ca: [2]Value{find(applied50CaPID2, text), find(applied50CaPID5, text)},
		Total50Ca:   [2]Value{find(total50CaPID2, text), find(total50CaPID5, text)},
		Applied49K:  [2]Value{find(applied49KPID2, text), find(applied49KPID5, text)},
		Total49K:    [2]Value{find(total49KPID2, text), find(total49KPID5, text)},
		Lcx:         Of(sel.Cut),
		Fid:         Of(sel.FocalPlane),
		OutputFile:  Missing,
	}

	if m := cutTypeRe.FindStringSubmatch(text); m != nil {
		rec.CutType = Of(m[1])
		rec.FocalPlane = Of(m[2])
	}

	if sel.Cut == Unfiltered {
		rec.CutType = Of(All)
	}

	if sel.FocalPlane == Unfiltered {
		rec.FocalPlane = Of(All)
	}

	if m := outputFileRe.FindStringSubmatch(text); m != nil {
		rec.OutputFile = Of(path.Base(m[1]))
	}

	if sel.Cut == "" {
		rec.Lcx = Missing
	}

	if sel.FocalPlane == "" {
		rec.Fid = Missing
	}

	return rec
}

func find(re *regexp.Regexp, text string) Value {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return Missing
	}

	return Of(m[1])
}
