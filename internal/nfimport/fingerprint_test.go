package nfimport

import "testing"

func sampleRow() []string {
	return []string{
		"05/08/2026 10:30",
		"Farinha de Trigo",
		"Entrada por NF",
		"NF: 12345",
		"10/CX",
		"100/UN",
		"25.50",
		"255.00",
		"",
	}
}

func TestFingerprintStableAcrossParses(t *testing.T) {
	a := ParseRow(sampleRow(), 5)
	b := ParseRow(sampleRow(), 42)

	if a.SourceFingerprint != b.SourceFingerprint {
		t.Errorf("identical rows produced different fingerprints: %s vs %s", a.SourceFingerprint, b.SourceFingerprint)
	}
}

func TestFingerprintIgnoresCellFormatting(t *testing.T) {
	messy := sampleRow()
	messy[1] = "  farinha   de  TRIGO "
	a := ParseRow(sampleRow(), 1)
	b := ParseRow(messy, 1)

	if a.SourceFingerprint != b.SourceFingerprint {
		t.Error("fingerprint should be insensitive to ingredient name formatting")
	}
}

func TestFingerprintChangesWithContent(t *testing.T) {
	base := ParseRow(sampleRow(), 1)

	changed := sampleRow()
	changed[6] = "26.00"
	other := ParseRow(changed, 1)
	if base.SourceFingerprint == other.SourceFingerprint {
		t.Error("different cost should produce a different fingerprint")
	}

	changed = sampleRow()
	changed[3] = "NF: 99999"
	other = ParseRow(changed, 1)
	if base.SourceFingerprint == other.SourceFingerprint {
		t.Error("different invoice should produce a different fingerprint")
	}
}

func TestFingerprintUnparseableDateFallsBackToRaw(t *testing.T) {
	bad := sampleRow()
	bad[0] = "data quebrada"
	a := ParseRow(bad, 1)
	b := ParseRow(bad, 2)

	if a.MovementAt != nil {
		t.Fatal("expected unparseable date")
	}
	if a.SourceFingerprint != b.SourceFingerprint {
		t.Error("raw-date fallback should still be deterministic")
	}
}
