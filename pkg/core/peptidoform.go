package core

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Modification represents a peptide modification with position and mass shift.
type Modification struct {
	Mass     float64
	Position int    // 0-based position; -1 for N-term, len(seq) for C-term
	Name     string // Label as reported (e.g., "Carbamidomethyl", "+15.995")
}

// Peptidoform is a peptide sequence with its modifications and precursor charge.
// It reads and writes a ProForma 2.0 subset:
//
//	<[Carbamidomethyl]@C>[Acetyl]-PEPM[Oxidation]TIDEK-[Amidated]/2
type Peptidoform struct {
	Sequence           string
	Modifications      []Modification
	Charge             int
	FixedModifications []FixedModification // declared, not yet applied
}

// ParsePeptidoform parses a ProForma string, resolving modification masses
// with the built-in modification table.
func ParsePeptidoform(s string) (Peptidoform, error) {
	return ParsePeptidoformWith(s, builtinMods())
}

// ParsePeptidoformWith parses a ProForma string, resolving modification
// masses with db.
func ParsePeptidoformWith(s string, db *ModDatabase) (Peptidoform, error) {
	var pf Peptidoform
	s = strings.TrimSpace(s)
	if s == "" {
		return pf, fmt.Errorf("empty peptidoform")
	}

	// Charge suffix
	if idx := strings.LastIndex(s, "/"); idx >= 0 && idx > strings.LastIndex(s, "]") {
		charge, err := strconv.Atoi(s[idx+1:])
		if err != nil {
			return pf, fmt.Errorf("invalid charge in peptidoform '%s': %w", s, err)
		}
		pf.Charge = charge
		s = s[:idx]
	}

	// Global fixed modification declarations
	for strings.HasPrefix(s, "<") {
		end := strings.Index(s, ">")
		if end < 0 {
			return pf, fmt.Errorf("unterminated fixed modification in '%s'", s)
		}
		decl := s[1:end]
		s = s[end+1:]
		at := strings.LastIndex(decl, "@")
		if at < 0 || !strings.HasPrefix(decl, "[") || !strings.HasSuffix(decl[:at], "]") {
			return pf, fmt.Errorf("invalid fixed modification '<%s>'", decl)
		}
		pf.FixedModifications = append(pf.FixedModifications, FixedModification{
			Name:    decl[1 : at-1],
			Targets: strings.Split(decl[at+1:], ","),
		})
	}

	i := 0
	// N-terminal modifications: one or more [label] followed by '-'
	if strings.HasPrefix(s, "[") {
		labels, next, err := readLabels(s, i)
		if err != nil {
			return pf, err
		}
		if next >= len(s) || s[next] != '-' {
			return pf, fmt.Errorf("unsupported modification placement in '%s'", s)
		}
		for _, label := range labels {
			pf.Modifications = append(pf.Modifications, newModification(db, label, -1))
		}
		i = next + 1
	}

	var seq strings.Builder
	for i < len(s) {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z':
			seq.WriteByte(c)
			i++
			if i < len(s) && s[i] == '[' {
				labels, next, err := readLabels(s, i)
				if err != nil {
					return pf, err
				}
				for _, label := range labels {
					pf.Modifications = append(pf.Modifications, newModification(db, label, seq.Len()-1))
				}
				i = next
			}
		case c == '-' && i+1 < len(s) && s[i+1] == '[':
			labels, next, err := readLabels(s, i+1)
			if err != nil {
				return pf, err
			}
			if next != len(s) {
				return pf, fmt.Errorf("unexpected characters after C-terminal modification in '%s'", s)
			}
			for _, label := range labels {
				pf.Modifications = append(pf.Modifications, newModification(db, label, seq.Len()))
			}
			i = next
		default:
			return pf, fmt.Errorf("unexpected character '%c' at position %d in '%s'", c, i, s)
		}
	}

	pf.Sequence = seq.String()
	if pf.Sequence == "" {
		return pf, fmt.Errorf("peptidoform '%s' has no residues", s)
	}
	pf.sortModifications()
	return pf, nil
}

// readLabels reads consecutive "[label]" groups starting at s[i].
func readLabels(s string, i int) ([]string, int, error) {
	var labels []string
	for i < len(s) && s[i] == '[' {
		end := strings.IndexByte(s[i:], ']')
		if end < 0 {
			return nil, i, fmt.Errorf("unterminated modification in '%s'", s)
		}
		labels = append(labels, s[i+1:i+end])
		i += end + 1
	}
	return labels, i, nil
}

func newModification(db *ModDatabase, label string, position int) Modification {
	mass, _ := db.Resolve(label)
	return Modification{Name: label, Mass: mass, Position: position}
}

// ProForma renders the peptidoform as a ProForma string.
func (p Peptidoform) ProForma() string {
	var b strings.Builder
	for _, fixed := range p.FixedModifications {
		fmt.Fprintf(&b, "<[%s]@%s>", fixed.Name, strings.Join(fixed.Targets, ","))
	}

	byPos := make(map[int][]Modification)
	for _, mod := range p.Modifications {
		byPos[mod.Position] = append(byPos[mod.Position], mod)
	}

	if nterm := byPos[-1]; len(nterm) > 0 {
		for _, mod := range nterm {
			b.WriteString("[" + mod.label() + "]")
		}
		b.WriteByte('-')
	}
	for i := 0; i < len(p.Sequence); i++ {
		b.WriteByte(p.Sequence[i])
		for _, mod := range byPos[i] {
			b.WriteString("[" + mod.label() + "]")
		}
	}
	if cterm := byPos[len(p.Sequence)]; len(cterm) > 0 {
		b.WriteByte('-')
		for _, mod := range cterm {
			b.WriteString("[" + mod.label() + "]")
		}
	}
	if p.Charge > 0 {
		fmt.Fprintf(&b, "/%d", p.Charge)
	}
	return b.String()
}

// ModifiedSequence renders the peptidoform without charge, as used in PIN files.
func (p Peptidoform) ModifiedSequence() string {
	q := p
	q.Charge = 0
	return q.ProForma()
}

func (m Modification) label() string {
	if m.Name != "" {
		return m.Name
	}
	return strconv.FormatFloat(m.Mass, 'f', -1, 64)
}

// NeutralMass returns the monoisotopic neutral mass including modifications.
func (p Peptidoform) NeutralMass() float64 {
	return CalculateNeutralMass(p.Sequence, p.Modifications)
}

// PrecursorMZ returns the theoretical precursor m/z at the peptidoform's charge.
func (p Peptidoform) PrecursorMZ() float64 {
	if p.Charge <= 0 {
		return 0
	}
	return CalculatePeptideMass(p.Sequence, p.Charge, p.Modifications)
}

// renameModifications relabels modifications found in mapping.
func (p *Peptidoform) renameModifications(mapping map[string]string, db *ModDatabase) {
	for i := range p.Modifications {
		newName, ok := mapping[p.Modifications[i].Name]
		if !ok {
			continue
		}
		p.Modifications[i].Name = newName
		if mass, ok := db.Resolve(newName); ok {
			p.Modifications[i].Mass = mass
		}
	}
	for i := range p.FixedModifications {
		if newName, ok := mapping[p.FixedModifications[i].Name]; ok {
			p.FixedModifications[i].Name = newName
		}
	}
}

// addFixedModifications declares fixed modifications, replacing earlier
// declarations with the same name.
func (p *Peptidoform) addFixedModifications(fixed []FixedModification) {
	for _, f := range fixed {
		replaced := false
		for i := range p.FixedModifications {
			if p.FixedModifications[i].Name == f.Name {
				p.FixedModifications[i] = f
				replaced = true
			}
		}
		if !replaced {
			p.FixedModifications = append(p.FixedModifications, f)
		}
	}
}

// applyFixedModifications places every declared fixed modification on its
// matching sites and clears the declarations. Sites that already carry the
// modification are left alone.
func (p *Peptidoform) applyFixedModifications(db *ModDatabase) {
	for _, f := range p.FixedModifications {
		mass, _ := db.Resolve(f.Name)
		for _, target := range f.Targets {
			switch target {
			case TargetNTerm:
				p.addModificationOnce(Modification{Name: f.Name, Mass: mass, Position: -1})
			case TargetCTerm:
				p.addModificationOnce(Modification{Name: f.Name, Mass: mass, Position: len(p.Sequence)})
			default:
				for i := 0; i < len(p.Sequence); i++ {
					if string(p.Sequence[i]) == target {
						p.addModificationOnce(Modification{Name: f.Name, Mass: mass, Position: i})
					}
				}
			}
		}
	}
	p.FixedModifications = nil
	p.sortModifications()
}

// resolveModifications updates the mass of every modification db knows.
func (p *Peptidoform) resolveModifications(db *ModDatabase) {
	for i := range p.Modifications {
		if mass, ok := db.Resolve(p.Modifications[i].Name); ok {
			p.Modifications[i].Mass = mass
		}
	}
}

func (p *Peptidoform) addModificationOnce(mod Modification) {
	for _, existing := range p.Modifications {
		if existing.Position == mod.Position && existing.Name == mod.Name {
			return
		}
	}
	p.Modifications = append(p.Modifications, mod)
}

func (p *Peptidoform) sortModifications() {
	sort.SliceStable(p.Modifications, func(i, j int) bool {
		return p.Modifications[i].Position < p.Modifications[j].Position
	})
}
