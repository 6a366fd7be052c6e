package output

import (
	"encoding/xml"
	"errors"

	"github.com/tsawler/bindery/format"
	"github.com/tsawler/bindery/internal/xmlenc"
)

// ContainerFile is the fixed location of the container document.
const ContainerFile = "META-INF/container.xml"

// Container-related errors.
var (
	ErrInvalidContainer = errors.New("epub: invalid container.xml")
	ErrNoRootfile       = errors.New("epub: no rootfile found in container.xml")
)

type containerXML struct {
	XMLName   xml.Name  `xml:"urn:oasis:names:tc:opendocument:xmlns:container container"`
	Version   string    `xml:"version,attr"`
	Rootfiles rootfiles `xml:"rootfiles"`
}

type rootfiles struct {
	Rootfile []rootfile `xml:"rootfile"`
}

type rootfile struct {
	FullPath  string `xml:"full-path,attr"`
	MediaType string `xml:"media-type,attr"`
}

// Container encodes META-INF/container.xml pointing at the package
// document at opfPath.
func Container(opfPath string) (string, error) {
	c := containerXML{
		Version: "1.0",
		Rootfiles: rootfiles{Rootfile: []rootfile{
			{FullPath: opfPath, MediaType: format.OPF},
		}},
	}
	return xmlenc.Marshal("container.xml", c, "")
}

// ParseContainer returns the package document path named by a container
// document.
func ParseContainer(data []byte) (string, error) {
	var c containerXML
	if err := xml.Unmarshal(data, &c); err != nil {
		return "", ErrInvalidContainer
	}

	for _, rf := range c.Rootfiles.Rootfile {
		if (rf.MediaType == format.OPF || rf.MediaType == "") && rf.FullPath != "" {
			return rf.FullPath, nil
		}
	}
	if len(c.Rootfiles.Rootfile) > 0 {
		return c.Rootfiles.Rootfile[0].FullPath, nil
	}
	return "", ErrNoRootfile
}
