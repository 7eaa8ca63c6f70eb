package stringpool

import (
	"strings"

	"github.com/standardbeagle/ffindex/internal/types"
)

// Components is the result of InternPathComponents.
type Components struct {
	DirID      types.StringID
	NameID     types.StringID
	ExtID      types.StringID
	FullPathID types.StringID
}

// InternPathComponents splits fullPath on the last OS separator and the
// last '.' of the basename in a single pass and interns all four pieces,
// in one pass. The extension keeps its leading dot and is interned in
// its lowercased form so ExtID comparisons never need a fold at query
// time.
func (p *Pool) InternPathComponents(fullPath string) (Components, error) {
	sepIdx := strings.LastIndexByte(fullPath, '/')
	if alt := strings.LastIndexByte(fullPath, '\\'); alt > sepIdx {
		sepIdx = alt
	}

	var dir, name string
	if sepIdx < 0 {
		dir, name = "", fullPath
	} else {
		dir, name = fullPath[:sepIdx], fullPath[sepIdx+1:]
	}

	ext := ""
	if dotIdx := strings.LastIndexByte(name, '.'); dotIdx > 0 {
		// A dotIdx of 0 means a dotfile like ".gitignore" with no
		// extension, matching common shell/filesystem convention.
		ext = strings.ToLower(name[dotIdx:])
	}

	dirID, err := p.Intern(dir)
	if err != nil {
		return Components{}, err
	}
	nameID, err := p.Intern(name)
	if err != nil {
		return Components{}, err
	}
	extID, err := p.Intern(ext)
	if err != nil {
		return Components{}, err
	}
	fullID, err := p.Intern(fullPath)
	if err != nil {
		return Components{}, err
	}

	return Components{DirID: dirID, NameID: nameID, ExtID: extID, FullPathID: fullID}, nil
}
