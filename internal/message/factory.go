package message

import (
	"sort"
	"sync"
)

// Well-known parameter names.
const (
	ParamDeltaSimTime   = "DeltaSimTime"
	ParamDeltaRealTime  = "DeltaRealTime"
	ParamSimTimeScale   = "SimTimeScale"
	ParamSimulationTime = "SimulationTime"

	ParamTimerName = "TimerName"
	ParamLateTime  = "LateTime"

	ParamMapNames = "MapNames"
	ParamOldMaps  = "OldMaps"
	ParamNewMaps  = "NewMaps"

	ParamTimeScale = "TimeScale"
	ParamSimTime   = "SimTime"

	ParamCause = "Cause"

	ParamActorType     = "ActorType"
	ParamActorCategory = "ActorCategory"
	ParamActorName     = "Name"
	ParamProperties    = "Properties"

	ParamLogName      = "LogName"
	ParamLogNames     = "LogNames"
	ParamLoggerState  = "State"
	ParamTagName      = "TagName"
	ParamTags         = "Tags"
	ParamMessageType  = "MessageType"
	ParamMessageCount = "MessageCount"
	ParamCurrentTime  = "CurrentTime"
	ParamIgnoredActor = "IgnoredActor"
)

type paramDecl struct {
	name  string
	dtype DataType
}

// Factory creates messages stamped with the local machine and pre-populated
// with the parameters their type carries.
type Factory struct {
	types   *TypeRegistry
	machine *MachineInfo

	mu      sync.RWMutex
	schemas map[*Type][]paramDecl
}

// NewFactory returns a factory over the given registry. A nil registry means
// Standard.
func NewFactory(types *TypeRegistry, machine *MachineInfo) *Factory {
	if types == nil {
		types = Standard
	}
	f := &Factory{
		types:   types,
		machine: machine,
		schemas: make(map[*Type][]paramDecl, 32),
	}
	f.registerBuiltinSchemas()
	return f
}

func (f *Factory) Types() *TypeRegistry  { return f.types }
func (f *Factory) Machine() *MachineInfo { return f.machine }

// RegisterSchema declares the parameters every message of type t starts with.
// Later declarations for the same type replace earlier ones.
func (f *Factory) RegisterSchema(t *Type, decls map[string]DataType) {
	list := make([]paramDecl, 0, len(decls))
	for name, d := range decls {
		list = append(list, paramDecl{name: name, dtype: d})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].name < list[j].name })
	f.mu.Lock()
	f.schemas[t] = list
	f.mu.Unlock()
}

func (f *Factory) registerBuiltinSchemas() {
	tick := map[string]DataType{
		ParamDeltaSimTime:   TypeFloat,
		ParamDeltaRealTime:  TypeFloat,
		ParamSimTimeScale:   TypeFloat,
		ParamSimulationTime: TypeDouble,
	}
	f.RegisterSchema(TickLocal, tick)
	f.RegisterSchema(TickRemote, tick)
	f.RegisterSchema(TickEndOfFrame, tick)

	f.RegisterSchema(InfoTimerElapsed, map[string]DataType{ParamTimerName: TypeString, ParamLateTime: TypeFloat})

	maps := map[string]DataType{ParamMapNames: TypeStringList}
	for _, t := range []*Type{InfoMapUnloadBegin, InfoMapUnloaded, InfoMapLoaded, InfoMapsOpened, InfoMapsClosed} {
		f.RegisterSchema(t, maps)
	}
	change := map[string]DataType{ParamOldMaps: TypeStringList, ParamNewMaps: TypeStringList}
	f.RegisterSchema(InfoMapChangeBegin, change)
	f.RegisterSchema(InfoMapChanged, change)

	timeChange := map[string]DataType{ParamTimeScale: TypeFloat, ParamSimTime: TypeDouble}
	for _, t := range []*Type{InfoTimeChanged, RequestSetTime, CommandSetTime} {
		f.RegisterSchema(t, timeChange)
	}

	f.RegisterSchema(ServerRequestRejected, map[string]DataType{ParamCause: TypeString})

	actorUpdate := map[string]DataType{
		ParamActorType:     TypeString,
		ParamActorCategory: TypeString,
		ParamActorName:     TypeString,
		ParamProperties:    TypeStringList,
	}
	f.RegisterSchema(InfoActorCreated, actorUpdate)
	f.RegisterSchema(InfoActorUpdated, actorUpdate)

	f.RegisterSchema(LogInfoStatus, map[string]DataType{
		ParamLoggerState:  TypeEnum,
		ParamLogName:      TypeString,
		ParamMessageCount: TypeInt64,
		ParamCurrentTime:  TypeDouble,
	})
	f.RegisterSchema(LogInfoLogs, map[string]DataType{ParamLogNames: TypeStringList})
	f.RegisterSchema(LogInfoTags, map[string]DataType{ParamTags: TypeStringList})
	f.RegisterSchema(LogReqSetLog, map[string]DataType{ParamLogName: TypeString})
	f.RegisterSchema(LogReqDeleteLog, map[string]DataType{ParamLogName: TypeString})
	f.RegisterSchema(LogReqInsertTag, map[string]DataType{ParamTagName: TypeString})
	f.RegisterSchema(LogReqAddIgnoredActor, map[string]DataType{ParamIgnoredActor: TypeActorID})
	f.RegisterSchema(LogReqRemoveIgnoredActor, map[string]DataType{ParamIgnoredActor: TypeActorID})
	f.RegisterSchema(LogReqAddIgnoredType, map[string]DataType{ParamMessageType: TypeString})
	f.RegisterSchema(LogReqRemoveIgnoredType, map[string]DataType{ParamMessageType: TypeString})
}

// CreateMessage returns a new queued message of type t whose source is the
// local machine.
func (f *Factory) CreateMessage(t *Type) *Message {
	m := New(t)
	m.Source = f.machine
	f.mu.RLock()
	decls := f.schemas[t]
	f.mu.RUnlock()
	for _, d := range decls {
		_ = m.AddParam(d.name, d.dtype)
	}
	return m
}

// TickInfo is the payload of tick messages.
type TickInfo struct {
	DeltaSim       float32
	DeltaReal      float32
	TimeScale      float32
	SimulationTime float64
}

// NewTick builds a tick message of type t.
func (f *Factory) NewTick(t *Type, info TickInfo) *Message {
	m := f.CreateMessage(t)
	_ = m.SetFloat(ParamDeltaSimTime, info.DeltaSim)
	_ = m.SetFloat(ParamDeltaRealTime, info.DeltaReal)
	_ = m.SetFloat(ParamSimTimeScale, info.TimeScale)
	_ = m.SetDouble(ParamSimulationTime, info.SimulationTime)
	return m
}

// ReadTick extracts the tick payload. Missing parameters read as zero.
func ReadTick(m *Message) TickInfo {
	var info TickInfo
	info.DeltaSim, _ = m.GetFloat(ParamDeltaSimTime)
	info.DeltaReal, _ = m.GetFloat(ParamDeltaRealTime)
	info.TimeScale, _ = m.GetFloat(ParamSimTimeScale)
	info.SimulationTime, _ = m.GetDouble(ParamSimulationTime)
	return info
}

// NewMapMessage builds a message of type t carrying a list of map names.
func (f *Factory) NewMapMessage(t *Type, names []string) *Message {
	m := f.CreateMessage(t)
	_ = m.SetStringList(ParamMapNames, names)
	return m
}

// MapNames returns the map list of a map message, or nil.
func MapNames(m *Message) []string {
	names, err := m.GetStringList(ParamMapNames)
	if err != nil {
		return nil
	}
	return names
}
