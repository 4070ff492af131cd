package hgvs

import (
	"fmt"
	"strings"
)

// Assembly is a reference genome build.
type Assembly string

const (
	GRCh37 Assembly = "GRCh37"
	GRCh38 Assembly = "GRCh38"
)

var contigAccessions = map[Assembly]map[string]string{
	GRCh37: {
		"1": "NC_000001.10", "2": "NC_000002.11", "3": "NC_000003.11", "4": "NC_000004.11",
		"5": "NC_000005.9", "6": "NC_000006.11", "7": "NC_000007.13", "8": "NC_000008.10",
		"9": "NC_000009.11", "10": "NC_000010.10", "11": "NC_000011.9", "12": "NC_000012.11",
		"13": "NC_000013.10", "14": "NC_000014.8", "15": "NC_000015.9", "16": "NC_000016.9",
		"17": "NC_000017.10", "18": "NC_000018.9", "19": "NC_000019.9", "20": "NC_000020.10",
		"21": "NC_000021.8", "22": "NC_000022.10", "X": "NC_000023.10", "Y": "NC_000024.9",
		"MT": "NC_012920.1",
	},
	GRCh38: {
		"1": "NC_000001.11", "2": "NC_000002.12", "3": "NC_000003.12", "4": "NC_000004.12",
		"5": "NC_000005.10", "6": "NC_000006.12", "7": "NC_000007.14", "8": "NC_000008.11",
		"9": "NC_000009.12", "10": "NC_000010.11", "11": "NC_000011.10", "12": "NC_000012.12",
		"13": "NC_000013.11", "14": "NC_000014.9", "15": "NC_000015.10", "16": "NC_000016.10",
		"17": "NC_000017.11", "18": "NC_000018.10", "19": "NC_000019.10", "20": "NC_000020.11",
		"21": "NC_000021.9", "22": "NC_000022.11", "X": "NC_000023.11", "Y": "NC_000024.10",
		"MT": "NC_012920.1",
	},
}

// ParseAssembly accepts GRCh37/GRCh38 and the common UCSC aliases.
func ParseAssembly(s string) (Assembly, error) {
	switch strings.ToLower(s) {
	case "grch37", "hg19", "b37":
		return GRCh37, nil
	case "grch38", "hg38":
		return GRCh38, nil
	}
	return "", fmt.Errorf("unsupported assembly %q (use GRCh37 or GRCh38)", s)
}

// AssemblyFromReference guesses the build from a VCF ##reference header
// value, which is usually a path to the FASTA the calls were made against.
func AssemblyFromReference(ref string) (Assembly, bool) {
	lower := strings.ToLower(ref)
	switch {
	case lower == "":
		return "", false
	case strings.Contains(lower, "grch38"), strings.Contains(lower, "hg38"):
		return GRCh38, true
	case strings.Contains(lower, "human_g1k_v37"), strings.Contains(lower, "grch37"),
		strings.Contains(lower, "hg19"), strings.Contains(lower, "b37"):
		return GRCh37, true
	}
	return "", false
}

// Accession returns the RefSeq accession for a contig name.
func (a Assembly) Accession(contig string) (string, bool) {
	acc, ok := contigAccessions[a][NormalizeContig(contig)]
	return acc, ok
}

// NormalizeContig strips a "chr" prefix and maps M to MT.
func NormalizeContig(contig string) string {
	c := strings.TrimPrefix(contig, "chr")
	if c == "M" {
		return "MT"
	}
	return c
}
