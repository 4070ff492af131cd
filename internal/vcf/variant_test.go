package vcf

import "testing"

func TestVariant_IsSNV(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		alt  string
		want bool
	}{
		{"A to G", "A", "G", true},
		{"deletion", "AT", "A", false},
		{"insertion", "A", "AT", false},
		{"MNV", "AT", "GC", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Variant{Ref: tt.ref, Alt: tt.alt}
			if got := v.IsSNV(); got != tt.want {
				t.Errorf("IsSNV() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVariant_IndelKinds(t *testing.T) {
	tests := []struct {
		name      string
		ref, alt  string
		indel     bool
		insertion bool
		deletion  bool
	}{
		{"SNV", "A", "G", false, false, false},
		{"deletion", "AT", "A", true, false, true},
		{"insertion", "A", "AT", true, true, false},
		{"MNV same length", "AT", "GC", false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Variant{Ref: tt.ref, Alt: tt.alt}
			if got := v.IsIndel(); got != tt.indel {
				t.Errorf("IsIndel() = %v, want %v", got, tt.indel)
			}
			if got := v.IsInsertion(); got != tt.insertion {
				t.Errorf("IsInsertion() = %v, want %v", got, tt.insertion)
			}
			if got := v.IsDeletion(); got != tt.deletion {
				t.Errorf("IsDeletion() = %v, want %v", got, tt.deletion)
			}
		})
	}
}

func TestVariant_Key(t *testing.T) {
	v := Variant{Chrom: "1", Pos: 100000, Ref: "C", Alt: "G"}
	if got := v.Key(); got != "1-100000-C-G" {
		t.Errorf("Key() = %q", got)
	}
}

func TestNormalizeChrom(t *testing.T) {
	tests := map[string]string{
		"chr12": "12",
		"12":    "12",
		"chrX":  "X",
		"chr":   "chr",
	}
	for in, want := range tests {
		if got := NormalizeChrom(in); got != want {
			t.Errorf("NormalizeChrom(%q) = %q, want %q", in, got, want)
		}
	}
}
