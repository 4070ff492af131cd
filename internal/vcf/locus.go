package vcf

import (
	"strconv"
	"strings"
)

// Locus is one VCF data line: a position with a reference allele, its
// ordered alternate alleles and the per-sample calls.
type Locus struct {
	Chrom   string
	Pos     int64
	ID      string
	Ref     string
	Alts    []string
	Qual    float64
	Filter  string
	Info    map[string]string
	Samples []Sample
}

// Sample holds one sample column of a locus.
type Sample struct {
	Name     string
	Genotype []int // allele indices from GT, -1 for a missing call
	Phased   bool
	Fields   map[string]string
}

// Depth returns the locus-level total depth from the INFO DP field.
func (l *Locus) Depth() (int, bool) {
	raw, ok := l.Info["DP"]
	if !ok {
		return 0, false
	}
	dp, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return dp, true
}

// HasAllele reports whether the sample's genotype call includes allele index idx.
func (s Sample) HasAllele(idx int) bool {
	for _, a := range s.Genotype {
		if a == idx {
			return true
		}
	}
	return false
}

// AlleleDepths returns the per-allele read counts stored under key (e.g. DPR
// or AD). Missing values are reported as 0. The second return is false when
// the sample has no such field.
func (s Sample) AlleleDepths(key string) ([]int, bool) {
	raw, ok := s.Fields[key]
	if !ok || raw == "" || raw == "." {
		return nil, false
	}
	parts := strings.Split(raw, ",")
	depths := make([]int, len(parts))
	for i, p := range parts {
		if n, err := strconv.Atoi(p); err == nil {
			depths[i] = n
		}
	}
	return depths, true
}

// parseGenotype splits a GT value on its phasing separator. Haploid calls
// ("1") and missing calls ("./.") are both accepted.
func parseGenotype(gt string) ([]int, bool) {
	phased := strings.Contains(gt, "|")
	sep := "/"
	if phased {
		sep = "|"
	}
	parts := strings.Split(gt, sep)
	alleles := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			n = -1
		}
		alleles[i] = n
	}
	return alleles, phased
}

// parseSamples zips the FORMAT keys with each sample column.
func parseSamples(format string, columns, names []string) []Sample {
	keys := strings.Split(format, ":")
	samples := make([]Sample, len(columns))
	for i, col := range columns {
		s := Sample{Fields: make(map[string]string, len(keys))}
		if i < len(names) {
			s.Name = names[i]
		}
		values := strings.Split(col, ":")
		for j, k := range keys {
			if j < len(values) {
				s.Fields[k] = values[j]
			}
		}
		if gt, ok := s.Fields["GT"]; ok {
			s.Genotype, s.Phased = parseGenotype(gt)
		}
		samples[i] = s
	}
	return samples
}
