package netsim

// trace.go gathers a record of kernel activity during a run: events scheduled,
// fired and skipped by the Simulator, and messages queued, delivered and dropped
// by Channels.  Records are kept per execution id, which the trial runner sets to
// the trial index.

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/iti/evt/vrtime"
	"gopkg.in/yaml.v3"
)

// TraceInst is one serialized trace record
type TraceInst struct {
	TraceTime string `json:"tracetime" yaml:"tracetime"`
	TraceType string `json:"tracetype" yaml:"tracetype"`
	TraceStr  string `json:"tracestr" yaml:"tracestr"`
}

// NameType is an entry in the dictionary that maps object id numbers to a (name,type) pair
type NameType struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// TraceManager gathers information about a simulation model and an execution of that model
type TraceManager struct {
	// experiment uses trace
	InUse bool `json:"inuse" yaml:"inuse"`

	// name of experiment
	ExpName string `json:"expname" yaml:"expname"`

	// text name associated with each objID
	NameByID map[int]NameType `json:"namebyid" yaml:"namebyid"`

	// all trace records for this experiment, by execution id
	Traces map[int][]TraceInst `json:"traces" yaml:"traces"`

	idByName map[string]int // inverse of NameByID for names given out by NameID
	nxtID    int
}

// CreateTraceManager is a constructor.  It saves the name of the experiment
// and a flag indicating whether the trace manager is active.  By testing this
// flag we can inhibit the activity of gathering a trace when we don't want it,
// while embedding calls to its methods everywhere we need them when it is
func CreateTraceManager(expName string, active bool) *TraceManager {
	tm := new(TraceManager)
	tm.InUse = active
	tm.ExpName = expName
	tm.NameByID = make(map[int]NameType)
	tm.Traces = make(map[int][]TraceInst)
	return tm
}

// Active tells the caller whether the Trace Manager is actively being used
func (tm *TraceManager) Active() bool {
	return tm.InUse
}

// AddTrace stores a trace record under execID
func (tm *TraceManager) AddTrace(vrt vrtime.Time, execID int, trace TraceInst) {
	if !tm.InUse {
		return
	}
	tm.Traces[execID] = append(tm.Traces[execID], trace)
}

// AddName adds an element to the id -> (name,type) dictionary
func (tm *TraceManager) AddName(id int, name string, objDesc string) error {
	if !tm.InUse {
		return nil
	}
	if _, present := tm.NameByID[id]; present {
		return fmt.Errorf("duplicated id %d in AddName", id)
	}
	tm.NameByID[id] = NameType{Name: name, Type: objDesc}
	if _, present := tm.idByName[name]; tm.idByName != nil && !present {
		tm.idByName[name] = id
	}
	return nil
}

// NameID returns the id under which name is listed in NameByID, adding the name with
// a fresh id when it is not there yet
func (tm *TraceManager) NameID(name string, objDesc string) int {
	if tm.idByName == nil {
		tm.idByName = make(map[string]int)
		for id, nt := range tm.NameByID {
			tm.idByName[nt.Name] = id
		}
	}
	if id, present := tm.idByName[name]; present {
		return id
	}
	for {
		tm.nxtID += 1
		if _, present := tm.NameByID[tm.nxtID]; !present {
			break
		}
	}
	tm.NameByID[tm.nxtID] = NameType{Name: name, Type: objDesc}
	tm.idByName[name] = tm.nxtID
	return tm.nxtID
}

// NumTraces returns the number of records held for execID
func (tm *TraceManager) NumTraces(execID int) int {
	return len(tm.Traces[execID])
}

// WriteToFile stores the TraceManager to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
// With globalOrder set, the records of all executions are merged into execution 0
// and sorted by time.
func (tm *TraceManager) WriteToFile(filename string, globalOrder bool) error {
	if !tm.InUse {
		return nil
	}

	out := tm
	if globalOrder {
		out = CreateTraceManager(tm.ExpName, tm.InUse)
		for key, value := range tm.NameByID {
			out.NameByID[key] = value
		}
		execIDs := make([]int, 0, len(tm.Traces))
		for execID := range tm.Traces {
			execIDs = append(execIDs, execID)
		}
		sort.Ints(execIDs)

		merged := make([]TraceInst, 0)
		for _, execID := range execIDs {
			merged = append(merged, tm.Traces[execID]...)
		}
		sort.SliceStable(merged, func(i, j int) bool {
			v1, _ := strconv.ParseFloat(merged[i].TraceTime, 64)
			v2, _ := strconv.ParseFloat(merged[j].TraceTime, 64)
			return v1 < v2
		})
		out.Traces[0] = merged
	}

	var bytes []byte
	var merr error
	switch path.Ext(filename) {
	case ".yaml", ".YAML", ".yml":
		bytes, merr = yaml.Marshal(*out)
	case ".json", ".JSON":
		bytes, merr = json.MarshalIndent(*out, "", "\t")
	default:
		return fmt.Errorf("trace file %s must have a yaml or json extension", filename)
	}
	if merr != nil {
		return merr
	}
	return os.WriteFile(filename, bytes, 0o644)
}

// ReadTraceFile deserializes a TraceManager written by WriteToFile
func ReadTraceFile(filename string) (*TraceManager, error) {
	dict, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	tm := CreateTraceManager("", false)
	ext := path.Ext(filename)
	if ext == ".yaml" || ext == ".YAML" || ext == ".yml" {
		err = yaml.Unmarshal(dict, tm)
	} else {
		err = json.Unmarshal(dict, tm)
	}
	if err != nil {
		return nil, err
	}
	return tm, nil
}

// KernelTrace records one action of the simulation kernel
type KernelTrace struct {
	Time     float64 `json:"time" yaml:"time"`
	Ticks    int64   `json:"ticks" yaml:"ticks"`
	Priority int64   `json:"priority" yaml:"priority"`
	ExecID   int     `json:"execid" yaml:"execid"`
	ObjID    uint64  `json:"objid" yaml:"objid"` // event id or message id, depending on Source
	Source   string  `json:"source" yaml:"source"`
	SrcID    int     `json:"srcid" yaml:"srcid"` // key of Source in the manager's NameByID
	Op       string  `json:"op" yaml:"op"` // "schedule", "fire", "skip", "enqueue", "deliver", "drop"
}

func (kt *KernelTrace) Serialize() string {
	bytes, merr := yaml.Marshal(*kt)
	if merr != nil {
		panic(merr)
	}
	return string(bytes[:])
}

// AddKernelTrace creates a KernelTrace from its arguments and stores it.  A source
// "kind:name" is listed in NameByID with type kind, any other source with its own name as type.
func AddKernelTrace(tm *TraceManager, vrt vrtime.Time, execID int, objID uint64, source, op string) {
	if !tm.InUse {
		return
	}
	kt := new(KernelTrace)
	kt.Time = vrt.Seconds()
	kt.Ticks = vrt.Ticks()
	kt.Priority = vrt.Pri()
	kt.ExecID = execID
	kt.ObjID = objID
	kt.Source = source
	kt.Op = op
	kind, _, _ := strings.Cut(source, ":")
	kt.SrcID = tm.NameID(source, kind)

	traceTime := strconv.FormatFloat(kt.Time, 'f', -1, 64)
	trcInst := TraceInst{TraceTime: traceTime, TraceType: "kernel", TraceStr: kt.Serialize()}
	tm.AddTrace(vrt, execID, trcInst)
}
