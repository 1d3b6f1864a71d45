package manifest

import (
	"encoding/xml"
	"io"
)

// SettingsDocument is the per-node settings file consumed by the runtime.
type SettingsDocument struct {
	XMLName  xml.Name  `xml:"Settings"`
	Sections []Section `xml:"Section"`
}

// WriteSettings serializes sections as a settings document.
func WriteSettings(w io.Writer, sections []Section) error {
	data, err := Marshal(SettingsDocument{Sections: sections})
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// ReadSettings decodes a settings document.
func ReadSettings(r io.Reader) ([]Section, error) {
	var doc SettingsDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, err
	}
	return doc.Sections, nil
}
