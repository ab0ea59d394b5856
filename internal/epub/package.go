package epub

import (
	"encoding/xml"
	"fmt"
	"strings"
)

const containerPath = "META-INF/container.xml"

type ocfContainer struct {
	XMLName   xml.Name `xml:"container"`
	RootFiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

// opfPath locates the package document, preferring container.xml and falling
// back to scanning for a .opf entry.
func (r *reader) opfPath() (string, error) {
	if f := r.find(containerPath); f != nil {
		data, err := readZipEntry(f)
		if err != nil {
			return "", fmt.Errorf("epub: read container.xml: %w", err)
		}

		var c ocfContainer
		if err := xml.Unmarshal(stripBOM(data), &c); err != nil {
			return "", fmt.Errorf("epub: parse container.xml: %w", err)
		}
		for _, rf := range c.RootFiles {
			full := strings.TrimSpace(rf.FullPath)
			if full == "" {
				continue
			}
			if rf.MediaType == "" || strings.EqualFold(rf.MediaType, "application/oebps-package+xml") {
				return full, nil
			}
		}
	}

	for _, f := range r.zr.File {
		if strings.HasSuffix(strings.ToLower(f.Name), ".opf") {
			return f.Name, nil
		}
	}
	return "", fmt.Errorf("epub: no package document found: %w", ErrInvalid)
}

// opfPackage models the parts of the OPF package document the importer uses.
type opfPackage struct {
	XMLName  xml.Name `xml:"package"`
	Version  string   `xml:"version,attr"`
	Meta     struct {
		Titles    []string `xml:"http://purl.org/dc/elements/1.1/ title"`
		Creators  []string `xml:"http://purl.org/dc/elements/1.1/ creator"`
		Languages []string `xml:"http://purl.org/dc/elements/1.1/ language"`
	} `xml:"metadata"`
	Manifest struct {
		Items []opfItem `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		Toc  string `xml:"toc,attr"`
		Refs []struct {
			IDRef  string `xml:"idref,attr"`
			Linear string `xml:"linear,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

type opfItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

func parsePackage(data []byte) (*opfPackage, error) {
	data = stripBOM(preprocessEntities(data))

	var pkg opfPackage
	if err := xml.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("epub: parse package document: %w", err)
	}
	if pkg.Version == "" {
		pkg.Version = "2.0"
	}
	return &pkg, nil
}

func (p *opfPackage) metadata() Metadata {
	md := Metadata{}
	if len(p.Meta.Titles) > 0 {
		md.Title = strings.TrimSpace(p.Meta.Titles[0])
	}
	if len(p.Meta.Creators) > 0 {
		md.Author = strings.TrimSpace(p.Meta.Creators[0])
	}
	if len(p.Meta.Languages) > 0 {
		md.Language = strings.TrimSpace(p.Meta.Languages[0])
	}
	return md
}
