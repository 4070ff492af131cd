// Package output provides annotation output formatters.
package output

import (
	"strconv"
	"strings"

	"github.com/inodb/vcf-annotate/internal/annotate"
)

// Columns is the header shared by all tabular writers.
var Columns = []string{
	"var_contig",
	"var_pos",
	"var_ref",
	"var_alt",
	"var_alt_index",
	"vcf_read_depth_site",
	"vcf_read_depth_alt",
	"vcf_perc_reads_alt",
	"vcf_containing_samples",
	"hgvs_sequence_alteration",
	"hgvs_feature_variant",
	"hgvs_hgvs_g",
	"hgvs_hgvs_c",
	"hgvs_hgvs_p",
	"hgvs_gene",
	"exac_allele_frequency",
	"exac_consequences",
}

// listSep joins list-valued fields.
const listSep = ";"

// Fields renders one annotation in Columns order. Absent optional values
// are empty strings.
func Fields(a *annotate.VariantAnnotation) []string {
	c := a.Consequence

	feature := ""
	if c.Feature != nil {
		feature = c.Feature.Slug
	}
	var g, cv, p string
	if c.Genomic != nil {
		g = c.Genomic.String()
	}
	if c.Coding != nil {
		cv = c.Coding.String()
	}
	if c.Protein != nil {
		p = c.Protein.String()
	}
	af := ""
	if a.Frequency.AlleleFrequency != nil {
		af = formatFloat(*a.Frequency.AlleleFrequency)
	}

	return []string{
		a.Variant.Chrom,
		strconv.FormatInt(a.Variant.Pos, 10),
		a.Variant.Ref,
		a.Variant.Alt,
		strconv.Itoa(a.Variant.AlleleIndex),
		strconv.Itoa(a.Support.SiteDepth),
		strconv.Itoa(a.Support.AlleleDepth),
		formatFloat(a.Support.AlleleFraction),
		strings.Join(a.Support.Samples, listSep),
		c.Alteration.Slug,
		feature,
		g,
		cv,
		p,
		c.Gene,
		af,
		strings.Join(a.Frequency.Consequences, listSep),
	}
}

// formatFloat rounds to two decimal places.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
