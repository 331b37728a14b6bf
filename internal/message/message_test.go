package message

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardTypes_DistinctIDs(t *testing.T) {
	seen := make(map[uint16]string)
	for _, typ := range Standard.All() {
		other, dup := seen[typ.ID()]
		assert.False(t, dup, "id %d shared by %q and %q", typ.ID(), other, typ.Name())
		seen[typ.ID()] = typ.Name()
	}
	assert.Equal(t, Standard.Count(), len(seen))
	assert.Same(t, TickLocal, Standard.Find("Tick Local", CategoryTick))
	assert.Same(t, InfoMapChanged, Standard.FindByID(InfoMapChanged.ID()))
}

func TestTypeRegistry_RejectsDuplicates(t *testing.T) {
	r := NewTypeRegistry()
	first, err := r.Register("Spawn", "Game", "spawn something", UserTypeBase)
	require.NoError(t, err)

	_, err = r.Register("Spawn", "Game", "again", UserTypeBase+1)
	assert.True(t, errors.Is(err, ErrDuplicateType), "same name and category should be rejected")

	_, err = r.Register("Despawn", "Game", "", UserTypeBase)
	assert.True(t, errors.Is(err, ErrDuplicateType), "reused id should be rejected")

	_, err = r.Register("", "Game", "", UserTypeBase+2)
	assert.True(t, errors.Is(err, ErrInvalidType))

	// Same name in a different category is a different type.
	second, err := r.Register("Spawn", "Editor", "", UserTypeBase+3)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Nil(t, r.FindByName("Spawn"), "ambiguous name lookup should fail")
	assert.Equal(t, 2, r.Count())
}

func TestMessage_TypedParams(t *testing.T) {
	m := New(InfoTimerElapsed)

	require.NoError(t, m.SetStr("TimerName", "respawn"))
	name, err := m.GetStr("TimerName")
	require.NoError(t, err)
	assert.Equal(t, "respawn", name)

	_, err = m.GetInt("TimerName")
	assert.True(t, errors.Is(err, ErrTypeMismatch))

	err = m.SetDouble("TimerName", 1.5)
	assert.True(t, errors.Is(err, ErrTypeMismatch), "setter must not change a parameter's type")

	_, err = m.GetBool("Missing")
	assert.True(t, errors.Is(err, ErrParamNotFound))

	require.NoError(t, m.SetStringList("Maps", []string{"a", "b"}))
	list, err := m.GetStringList("Maps")
	require.NoError(t, err)
	list[0] = "changed"
	again, _ := m.GetStringList("Maps")
	assert.Equal(t, []string{"a", "b"}, again, "returned lists are copies")
}

func TestMessage_SetStringParsesDeclaredType(t *testing.T) {
	m := New(TickLocal)
	require.NoError(t, m.AddParam("Position", TypeVec3))
	require.NoError(t, m.SetString("Position", "1 2.5 -3"))
	v, err := m.GetVec3("Position")
	require.NoError(t, err)
	assert.Equal(t, Vec3{1, 2.5, -3}, v)

	err = m.SetString("Position", "1 2")
	assert.True(t, errors.Is(err, ErrBadValue))
	err = m.SetString("Nope", "1")
	assert.True(t, errors.Is(err, ErrParamNotFound))
}

func TestCodec_RoundTrip(t *testing.T) {
	local := NewMachineInfo("local")
	local.Host = "sim01"
	local.Port = 7000
	f := NewFactory(nil, local)

	m := f.CreateMessage(InfoMapChangeBegin)
	m.AboutActorID = NewUniqueID()
	m.SendingActorID = NewUniqueID()
	m.Destination = NewMachineInfo("remote")
	require.NoError(t, m.SetStringList(ParamOldMaps, []string{"map A", "with, comma"}))
	require.NoError(t, m.SetStringList(ParamNewMaps, []string{}))
	require.NoError(t, m.SetBool("Flag", true))
	require.NoError(t, m.SetInt("Count", -42))
	require.NoError(t, m.SetInt64("Big", 1<<40))
	require.NoError(t, m.SetFloat("Ratio", 0.1))
	require.NoError(t, m.SetDouble("Time", 12345.6789))
	require.NoError(t, m.SetEnum("Mode", "FAST"))
	require.NoError(t, m.SetActorID("Target", NewUniqueID()))
	require.NoError(t, m.SetVec3("Pos", Vec3{1.25, -2, 1e-9}))
	require.NoError(t, m.SetStr("Label", "héllo ✓ \x00 \"q\""))
	require.NoError(t, m.SetStringList("Tags", []string{"ü", "日本"}))

	// Bytes the JSON envelope would rewrite are refused up front.
	assert.ErrorIs(t, m.SetStr("Raw", "\xffa\xfe"), ErrBadValue)
	assert.ErrorIs(t, m.SetEnum("RawMode", "\xfe"), ErrBadValue)
	assert.ErrorIs(t, m.SetStringList("RawList", []string{"ok", "\xffa\xfe"}), ErrBadValue)
	assert.ErrorIs(t, m.SetString("Label", "\xff"), ErrBadValue)
	_, err := m.GetStr("Raw")
	assert.ErrorIs(t, err, ErrParamNotFound)
	label, _ := m.GetStr("Label")
	assert.Equal(t, "héllo ✓ \x00 \"q\"", label)

	s, err := m.ToString()
	require.NoError(t, err)

	got, err := f.FromString(s)
	require.NoError(t, err)
	assert.Same(t, InfoMapChangeBegin, got.Type())
	assert.True(t, got.Source.Equal(local))
	assert.Equal(t, "sim01", got.Source.Host)
	assert.True(t, got.Destination.Equal(m.Destination))
	assert.Equal(t, m.AboutActorID, got.AboutActorID)
	assert.Equal(t, m.SendingActorID, got.SendingActorID)

	require.Len(t, got.Params(), len(m.Params()))
	for i, p := range m.Params() {
		q := got.Params()[i]
		assert.Equal(t, p.Name(), q.Name())
		assert.Equal(t, p.DataType(), q.DataType())
		assert.Equal(t, p.Value(), q.Value(), "param %s", p.Name())
	}

	again, err := got.ToString()
	require.NoError(t, err)
	assert.JSONEq(t, s, again)
}

func TestCodec_CausingMessage(t *testing.T) {
	f := NewFactory(nil, NewMachineInfo("server"))
	req := f.CreateMessage(RequestPause)
	reject := f.CreateMessage(ServerRequestRejected)
	reject.Causing = req
	require.NoError(t, reject.SetStr(ParamCause, "not allowed"))

	s, err := reject.ToString()
	require.NoError(t, err)
	got, err := f.FromString(s)
	require.NoError(t, err)
	require.NotNil(t, got.Causing)
	assert.Same(t, RequestPause, got.Causing.Type())
	cause, _ := got.GetStr(ParamCause)
	assert.Equal(t, "not allowed", cause)
}

func TestCodec_UnknownType(t *testing.T) {
	r := NewTypeRegistry()
	custom := r.MustRegister("Custom", "Game", "", UserTypeBase)
	s, err := New(custom).ToString()
	require.NoError(t, err)

	_, err = NewFactory(nil, nil).FromString(s)
	assert.True(t, errors.Is(err, ErrUnknownType))

	got, err := NewFactory(r, nil).FromString(s)
	require.NoError(t, err)
	assert.Same(t, custom, got.Type())
}

func TestPeekTypeName(t *testing.T) {
	f := NewFactory(nil, nil)
	s, err := f.CreateMessage(TickRemote).ToString()
	require.NoError(t, err)

	name, category, ok := PeekTypeName([]byte(s))
	assert.True(t, ok)
	assert.Equal(t, "Tick Remote", name)
	assert.Equal(t, CategoryTick, category)

	_, _, ok = PeekTypeName([]byte(`{"params":[]}`))
	assert.False(t, ok)
}

func TestFactory_TickHelpers(t *testing.T) {
	f := NewFactory(nil, NewMachineInfo("local"))
	m := f.NewTick(TickLocal, TickInfo{DeltaSim: 0.5, DeltaReal: 0.25, TimeScale: 2, SimulationTime: 10})
	assert.Same(t, f.Machine(), m.Source)
	assert.Equal(t, TickInfo{DeltaSim: 0.5, DeltaReal: 0.25, TimeScale: 2, SimulationTime: 10}, ReadTick(m))

	mm := f.NewMapMessage(InfoMapLoaded, []string{"town"})
	assert.Equal(t, []string{"town"}, MapNames(mm))
	assert.Nil(t, MapNames(f.CreateMessage(TickLocal)))
}

func TestMessage_CloneIsDeep(t *testing.T) {
	f := NewFactory(nil, NewMachineInfo("local"))
	m := f.NewMapMessage(InfoMapLoaded, []string{"a"})
	c := m.Clone()
	require.NoError(t, c.SetStringList(ParamMapNames, []string{"b"}))
	assert.Equal(t, []string{"a"}, MapNames(m))
	assert.NotSame(t, m.Source, c.Source)
	assert.True(t, m.Source.Equal(c.Source))
}
