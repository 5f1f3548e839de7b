package extracts

import (
	"sort"

	"bank-extract-reconciler/pkg/errors"
)

// ShapeKey masks the bank digits in an extract file name so file-set shapes
// can be compared across banks.
func ShapeKey(name string) string {
	return bankCodePattern.ReplaceAllString(name, shapeMask)
}

// CheckConsistency verifies that every bank exposes the same file-set shape
// as the reference bank (the first in sorted order). All banks are fed by
// the same extraction job; a divergent shape indicates an upstream defect
// that invalidates the whole run, so the check fails fast on the first
// mismatch instead of collecting all of them.
func CheckConsistency(idx *Index) error {
	banks := idx.Banks()
	if len(banks) == 0 {
		return errors.ScanError(errors.CodeNoBanksFound, idx.Dir(), nil)
	}

	reference := banks[0]
	referenceShape := shapeKeySet(idx.Files(reference))

	for _, bank := range banks[1:] {
		shape := shapeKeySet(idx.Files(bank))
		if missing, unexpected := diffShapes(referenceShape, shape); len(missing) > 0 || len(unexpected) > 0 {
			return errors.ShapeMismatchError(bank, reference, missing, unexpected)
		}
	}

	return nil
}

func shapeKeySet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[ShapeKey(name)] = true
	}
	return set
}

// diffShapes returns the reference keys the bank lacks and the bank keys the
// reference lacks, both sorted for stable diagnostics.
func diffShapes(reference, shape map[string]bool) (missing, unexpected []string) {
	for key := range reference {
		if !shape[key] {
			missing = append(missing, key)
		}
	}
	for key := range shape {
		if !reference[key] {
			unexpected = append(unexpected, key)
		}
	}
	sort.Strings(missing)
	sort.Strings(unexpected)
	return missing, unexpected
}
