package sim

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"

	"github.com/san-kum/simbridge/internal/bridge"
)

// AttachLink is the suffix of the digital twin link fixed to the rig pivot.
const AttachLink = "base_link"

// Twin is the part of a digital twin model description the engine uses.
type Twin struct {
	Path  string
	Name  string
	Links []string

	// Plugin parameters found in the model; empty when absent.
	RobotNamespace    string
	CommandPubTopic   string
	ImuSubTopic       string
	EscSubTopicPrefix string
}

type sdfDocument struct {
	Model *struct {
		Name  string `xml:"name,attr"`
		Links []struct {
			Name string `xml:"name,attr"`
		} `xml:"link"`
		Plugins []struct {
			RobotNamespace    string `xml:"robotNamespace"`
			CommandPubTopic   string `xml:"commandPubTopic"`
			ImuSubTopic       string `xml:"imuSubTopic"`
			EscSubTopicPrefix string `xml:"escSubTopicPrefix"`
		} `xml:"plugin"`
	} `xml:"model"`
}

// LoadTwin reads a model description file.
func LoadTwin(path string) (*Twin, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sim: digital twin: %w", err)
	}
	var doc sdfDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("sim: digital twin %s is not a valid model file: %w", path, err)
	}
	if doc.Model == nil {
		return nil, fmt.Errorf("%w: %s has no model", bridge.ErrUnknownModelOrLink, path)
	}

	t := &Twin{Path: path, Name: doc.Model.Name}
	for _, l := range doc.Model.Links {
		t.Links = append(t.Links, l.Name)
	}
	for _, p := range doc.Model.Plugins {
		t.RobotNamespace = firstNonEmpty(p.RobotNamespace, t.RobotNamespace)
		t.CommandPubTopic = firstNonEmpty(p.CommandPubTopic, t.CommandPubTopic)
		t.ImuSubTopic = firstNonEmpty(p.ImuSubTopic, t.ImuSubTopic)
		t.EscSubTopicPrefix = firstNonEmpty(p.EscSubTopicPrefix, t.EscSubTopicPrefix)
	}
	return t, nil
}

// FindLink returns the first link whose name ends with suffix.
func (t *Twin) FindLink(suffix string) (string, error) {
	for _, name := range t.Links {
		if strings.HasSuffix(name, suffix) {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: no link %q in model %q", bridge.ErrUnknownModelOrLink, suffix, t.Name)
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
