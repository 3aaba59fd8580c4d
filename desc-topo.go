package netsim

// file desc-topo.go holds the serializable description of a topology: the names
// of its nodes and the directed links between them, with optional per-link
// delay and loss parameters.  A Trial turns a description into a Topology whose
// channels draw from the trial's seeded streams.

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

// LinkDesc describes the channel from Src to Dst.  With Bidir set a second channel
// from Dst to Src with the same parameters is described too.  Parameters left
// unset take the values of the trial configuration.
type LinkDesc struct {
	Src       string   `json:"src" yaml:"src"`
	Dst       string   `json:"dst" yaml:"dst"`
	Bidir     bool     `json:"bidir" yaml:"bidir"`
	MinDelay  *float64 `json:"mindelay,omitempty" yaml:"mindelay,omitempty"`
	MeanDelay *float64 `json:"meandelay,omitempty" yaml:"meandelay,omitempty"`
	LossRate  *float64 `json:"lossrate,omitempty" yaml:"lossrate,omitempty"`
}

// ChannelName is the name given to the channel from src to dst; the channel's
// random streams are named after it
func ChannelName(src, dst string) string {
	return src + "->" + dst
}

// TopoDesc lists the nodes and links of a topology, as they appear in its file
type TopoDesc struct {
	Name  string     `json:"name" yaml:"name"`
	Nodes []string   `json:"nodes" yaml:"nodes"`
	Links []LinkDesc `json:"links" yaml:"links"`
}

// CreateTopoDesc is a constructor
func CreateTopoDesc(name string) *TopoDesc {
	td := new(TopoDesc)
	td.Name = name
	td.Nodes = make([]string, 0)
	td.Links = make([]LinkDesc, 0)
	return td
}

// AddNode includes a node name, ignoring one already present
func (td *TopoDesc) AddNode(name string) {
	if !slices.Contains(td.Nodes, name) {
		td.Nodes = append(td.Nodes, name)
	}
}

// AddLink describes a link using the trial's default parameters and returns it
// so the caller can set overrides
func (td *TopoDesc) AddLink(src, dst string, bidir bool) *LinkDesc {
	td.Links = append(td.Links, LinkDesc{Src: src, Dst: dst, Bidir: bidir})
	return &td.Links[len(td.Links)-1]
}

// directed expands the link descriptions into one per channel
func (td *TopoDesc) directed() []LinkDesc {
	links := make([]LinkDesc, 0, 2*len(td.Links))
	for _, link := range td.Links {
		fwd := link
		fwd.Bidir = false
		links = append(links, fwd)
		if link.Bidir {
			rev := fwd
			rev.Src, rev.Dst = link.Dst, link.Src
			links = append(links, rev)
		}
	}
	return links
}

// Validate reports every problem with the description at once
func (td *TopoDesc) Validate() error {
	errs := make([]error, 0)
	seen := make(map[string]bool)
	for _, name := range td.Nodes {
		if len(name) == 0 {
			errs = append(errs, fmt.Errorf("topology %s has a node with an empty name", td.Name))
			continue
		}
		if seen[name] {
			errs = append(errs, fmt.Errorf("topology %s lists node %s twice", td.Name, name))
		}
		seen[name] = true
	}

	linked := make(map[string]bool)
	for _, link := range td.directed() {
		name := ChannelName(link.Src, link.Dst)
		if !seen[link.Src] || !seen[link.Dst] {
			errs = append(errs, fmt.Errorf("link %s: %w", name, ErrUnknownNode))
			continue
		}
		if link.Src == link.Dst {
			errs = append(errs, fmt.Errorf("link %s joins a node to itself", name))
			continue
		}
		if linked[name] {
			errs = append(errs, fmt.Errorf("link %s described twice", name))
		}
		linked[name] = true

		if link.LossRate != nil {
			errs = append(errs, checkProbability("link "+name+" loss rate", *link.LossRate))
		}
		if link.MeanDelay != nil && !(*link.MeanDelay > 0.0) {
			errs = append(errs, fmt.Errorf("link %s mean delay must be positive, got %v", name, *link.MeanDelay))
		}
		if link.MinDelay != nil && !(*link.MinDelay >= 0.0) {
			errs = append(errs, fmt.Errorf("link %s minimum delay must be non-negative, got %v", name, *link.MinDelay))
		}
	}
	return ReportErrs(errs)
}

// WriteToFile serializes the TopoDesc and writes to the file whose name is given as an input argument.
// Extension of the file name selects whether serialization is to json or to yaml format.
func (td *TopoDesc) WriteToFile(filename string) error {
	pathExt := path.Ext(filename)
	var bytes []byte
	var merr error

	if pathExt == ".yaml" || pathExt == ".YAML" || pathExt == ".yml" {
		bytes, merr = yaml.Marshal(*td)
	} else if pathExt == ".json" || pathExt == ".JSON" {
		bytes, merr = json.MarshalIndent(*td, "", "\t")
	} else {
		return fmt.Errorf("topology file %s must have a yaml or json extension", filename)
	}
	if merr != nil {
		return merr
	}
	return os.WriteFile(filename, bytes, 0o644)
}

// ReadTopoDesc deserializes a slice of bytes into a TopoDesc.  If the input arg of bytes
// is empty, the file whose name is given as an argument is read.  The description is
// validated before it is returned.
func ReadTopoDesc(topoFileName string, useYAML bool, dict []byte) (*TopoDesc, error) {
	var err error

	if len(dict) == 0 {
		fileInfo, err := os.Stat(topoFileName)
		if err != nil || fileInfo.IsDir() {
			return nil, fmt.Errorf("topology %s does not exist or cannot be read", topoFileName)
		}
		dict, err = os.ReadFile(topoFileName)
		if err != nil {
			return nil, err
		}
	}

	example := TopoDesc{}
	if useYAML {
		err = yaml.Unmarshal(dict, &example)
	} else {
		err = json.Unmarshal(dict, &example)
	}
	if err != nil {
		return nil, err
	}
	if err := example.Validate(); err != nil {
		return nil, err
	}
	return &example, nil
}

// BuildTopology creates a channel for every directed link of desc and joins the
// nodes with them.  rcvs gives the Receiver of every node.
func (trial *Trial) BuildTopology(desc *TopoDesc, rcvs map[string]Receiver) (*Topology, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	topo := CreateTopology(trial.Msgs)
	for _, name := range desc.Nodes {
		if err := topo.AddNode(name, rcvs[name]); err != nil {
			return nil, err
		}
	}
	for _, link := range desc.directed() {
		chnl, err := trial.linkChannel(link)
		if err != nil {
			return nil, err
		}
		if err := topo.Connect(link.Src, link.Dst, chnl); err != nil {
			return nil, err
		}
	}
	return topo, nil
}

// linkChannel makes the channel a link describes, drawing parameters the link
// leaves unset from the trial configuration
func (trial *Trial) linkChannel(link LinkDesc) (*Channel, error) {
	if link.MinDelay == nil && link.MeanDelay == nil && link.LossRate == nil {
		return trial.CreateChannel(ChannelName(link.Src, link.Dst))
	}

	cfg := *trial.Cfg
	if link.MinDelay != nil {
		cfg.MinDelay = *link.MinDelay
	}
	if link.MeanDelay != nil {
		cfg.MeanDelay = *link.MeanDelay
	}
	if link.LossRate != nil {
		cfg.LossRate = *link.LossRate
	}
	linkTrial := *trial
	linkTrial.Cfg = &cfg
	return linkTrial.CreateChannel(ChannelName(link.Src, link.Dst))
}

// ReportErrs gathers the non-nil errors of a list into a single error reporting each
// on its own line, or returns nil if there are none.  The result matches each
// constituent under errors.Is.
func ReportErrs(errs []error) error {
	return errors.Join(errs...)
}

// CheckOutputFiles probes the file system to ensure that the directory of every
// non-empty argument filename exists, so that the file can be written
func CheckOutputFiles(names []string) error {
	errs := make([]error, 0)
	for _, name := range names {
		if len(name) == 0 {
			continue
		}
		directory, _ := filepath.Split(name)
		if len(directory) == 0 {
			continue
		}
		if info, err := os.Stat(directory); err != nil {
			errs = append(errs, err)
		} else if !info.IsDir() {
			errs = append(errs, errors.New(directory+" is not a directory"))
		}
	}
	return ReportErrs(errs)
}
