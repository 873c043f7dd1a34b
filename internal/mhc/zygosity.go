package mhc

// ResolveZygosity derives the zygosity of one gene from its alleles.
// All alleles must belong to the same gene and there may be at most two;
// otherwise a *DataValidationError is returned.
func ResolveZygosity(alleles []MhcAllele) (Zygosity, error) {
	genes := make(map[string]bool, len(alleles))
	for _, a := range alleles {
		genes[a.Gene] = true
	}
	if len(genes) > 1 {
		return Loss, boundaryError(invariantf("Trying to get zygosity from alleles of different genes"))
	}
	if len(alleles) > 2 {
		return Loss, boundaryError(invariantf("More than 2 alleles for gene %s", alleles[0].Gene))
	}

	switch {
	case len(alleles) == 2 && alleles[0].Name == alleles[1].Name:
		return Homozygous, nil
	case len(alleles) == 2:
		return Heterozygous, nil
	case len(alleles) == 1:
		return Hemizygous, nil
	default:
		return Loss, nil
	}
}

// collapseHomozygous keeps a single instance of a homozygous allele.
func collapseHomozygous(z Zygosity, alleles []MhcAllele) []MhcAllele {
	if z == Homozygous {
		return []MhcAllele{alleles[0]}
	}
	return alleles
}

// geneAlleles resolves the zygosity of the alleles of one gene and returns the
// deduplicated list to store.
func geneAlleles(gene string, parsed []MhcAllele) (Zygosity, []MhcAllele, error) {
	var alleles []MhcAllele
	for _, a := range parsed {
		if a.Gene == gene {
			alleles = append(alleles, a)
		}
	}
	z, err := ResolveZygosity(alleles)
	if err != nil {
		return Loss, nil, err
	}
	alleles = collapseHomozygous(z, alleles)
	if alleles == nil {
		alleles = []MhcAllele{}
	}
	return z, alleles, nil
}
