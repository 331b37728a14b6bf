package component

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/dtsim/server/internal/gm"
	"github.com/dtsim/server/internal/message"
	"github.com/dtsim/server/internal/persist"
)

const LoggerName = "ServerLoggerComponent"

// LoggerState is the recording state of the server logger.
type LoggerState int

const (
	LoggerIdle LoggerState = iota
	LoggerRecord
	LoggerPlayback
)

func (s LoggerState) String() string {
	switch s {
	case LoggerRecord:
		return "RECORD"
	case LoggerPlayback:
		return "PLAYBACK"
	default:
		return "IDLE"
	}
}

// LogStream stores recorded message logs.
type LogStream interface {
	Logs(ctx context.Context) ([]string, error)
	Create(ctx context.Context, name string) error
	Delete(ctx context.Context, name string) error
	Append(ctx context.Context, name string, e persist.LogEntry) error
	InsertTag(ctx context.Context, name string, t persist.Tag) error
	Tags(ctx context.Context, name string) ([]persist.Tag, error)
	Entries(ctx context.Context, name string) ([]persist.LogEntry, error)
	Flush(ctx context.Context) error
}

const streamTimeout = 5 * time.Second

// ServerLogger records the message traffic of a simulation into a LogStream
// and plays it back. It is driven by LOG_REQ_* messages and answers with
// LOG_INFO_* messages.
type ServerLogger struct {
	gm.BaseComponent
	stream LogStream
	log    *zap.Logger

	state   LoggerState
	logName string
	count   int64
	started float64 // sim seconds when the current recording or playback began

	entries      []persist.LogEntry
	cursor       int
	playbackDone bool

	ignoredActors map[message.UniqueID]bool
	ignoredTypes  map[string]bool
}

func NewServerLogger(stream LogStream, log *zap.Logger) *ServerLogger {
	return &ServerLogger{
		BaseComponent: gm.NewBaseComponent(LoggerName),
		stream:        stream,
		log:           log,
		ignoredActors: make(map[message.UniqueID]bool),
		ignoredTypes:  make(map[string]bool),
	}
}

func (l *ServerLogger) State() LoggerState { return l.state }
func (l *ServerLogger) LogName() string    { return l.logName }
func (l *ServerLogger) Count() int64       { return l.count }

// SetLogName selects the log used by the next recording or playback.
func (l *ServerLogger) SetLogName(name string) { l.logName = name }

func (l *ServerLogger) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), streamTimeout)
}

func (l *ServerLogger) now() float64 {
	return l.GameManager().Clock().SimTime().Seconds()
}

func (l *ServerLogger) ProcessMessage(msg *message.Message) error {
	t := msg.Type()
	if t.Category() == message.CategoryLogger {
		return l.request(msg)
	}
	switch l.state {
	case LoggerRecord:
		if l.recordable(msg) {
			return l.record(msg)
		}
	case LoggerPlayback:
		if t == message.TickLocal {
			l.playback()
		}
	}
	return nil
}

func (l *ServerLogger) OnRemovedFromGM() {
	if err := l.Flush(); err != nil {
		l.log.Error("final log flush failed", zap.Error(err))
	}
	l.BaseComponent.OnRemovedFromGM()
}

// Flush writes buffered entries to the stream.
func (l *ServerLogger) Flush() error {
	ctx, cancel := l.ctx()
	defer cancel()
	return l.stream.Flush(ctx)
}

func (l *ServerLogger) recordable(msg *message.Message) bool {
	t := msg.Type()
	switch t.Category() {
	case message.CategoryTick, message.CategorySystem, message.CategoryLogger:
		return false
	}
	if l.ignoredTypes[t.Name()] {
		return false
	}
	if !msg.AboutActorID.IsNull() && l.ignoredActors[msg.AboutActorID] {
		return false
	}
	if !msg.SendingActorID.IsNull() && l.ignoredActors[msg.SendingActorID] {
		return false
	}
	return true
}

func (l *ServerLogger) record(msg *message.Message) error {
	data, err := msg.ToString()
	if err != nil {
		return fmt.Errorf("record %s: %w", msg.Type(), err)
	}
	ctx, cancel := l.ctx()
	defer cancel()
	if err := l.stream.Append(ctx, l.logName, persist.LogEntry{SimTime: l.now() - l.started, Data: data}); err != nil {
		return fmt.Errorf("record %s: %w", msg.Type(), err)
	}
	l.count++
	return nil
}

// playback releases every entry whose time has come. When the log runs out
// the simulation pauses and LOG_INFO_PLAYBACK_END_OF_MESSAGES goes out.
func (l *ServerLogger) playback() {
	g := l.GameManager()
	elapsed := l.now() - l.started
	for l.cursor < len(l.entries) && l.entries[l.cursor].SimTime <= elapsed {
		e := l.entries[l.cursor]
		l.cursor++
		msg, err := g.MessageFactory().FromString(e.Data)
		if err != nil {
			l.log.Warn("unreadable log entry skipped",
				zap.String("log", l.logName),
				zap.Int("entry", l.cursor-1),
				zap.Error(err))
			continue
		}
		msg.Delivery = message.Queued
		g.SendMessage(msg)
		l.count++
	}
	if l.cursor >= len(l.entries) && !l.playbackDone {
		l.playbackDone = true
		g.SetPaused(true)
		g.SendMessage(g.MessageFactory().CreateMessage(message.LogInfoPlaybackEndOfMessages))
		l.log.Info("playback finished", zap.String("log", l.logName), zap.Int64("messages", l.count))
	}
}

func (l *ServerLogger) request(msg *message.Message) error {
	g := l.GameManager()
	ctx, cancel := l.ctx()
	defer cancel()

	switch msg.Type() {
	case message.LogReqChangeStateRecord:
		if err := l.startRecord(ctx); err != nil {
			g.RejectMessage(msg, err.Error())
			return nil
		}
		l.sendStatus(msg)
	case message.LogReqChangeStatePlayback:
		if err := l.startPlayback(ctx); err != nil {
			g.RejectMessage(msg, err.Error())
			return nil
		}
		l.sendStatus(msg)
	case message.LogReqChangeStateIdle:
		l.stop(ctx)
		l.sendStatus(msg)
	case message.LogReqGetStatus:
		l.sendStatus(msg)
	case message.LogReqGetLogs:
		l.sendLogs(ctx, msg)
	case message.LogReqSetLog:
		name, _ := msg.GetStr(message.ParamLogName)
		if l.state != LoggerIdle {
			g.RejectMessage(msg, "cannot change log while "+l.state.String())
			return nil
		}
		if name == "" {
			g.RejectMessage(msg, "empty log name")
			return nil
		}
		l.logName = name
		l.sendStatus(msg)
	case message.LogReqDeleteLog:
		name, _ := msg.GetStr(message.ParamLogName)
		if name == l.logName && l.state != LoggerIdle {
			g.RejectMessage(msg, "log in use")
			return nil
		}
		if err := l.stream.Delete(ctx, name); err != nil {
			g.RejectMessage(msg, err.Error())
			return nil
		}
		l.sendLogs(ctx, msg)
	case message.LogReqInsertTag:
		name, _ := msg.GetStr(message.ParamTagName)
		if l.state != LoggerRecord {
			g.RejectMessage(msg, "tags can only be inserted while recording")
			return nil
		}
		if err := l.stream.InsertTag(ctx, l.logName, persist.Tag{Name: name, SimTime: l.now() - l.started}); err != nil {
			g.RejectMessage(msg, err.Error())
			return nil
		}
	case message.LogReqGetTags:
		tags, err := l.stream.Tags(ctx, l.logName)
		if err != nil {
			g.RejectMessage(msg, err.Error())
			return nil
		}
		out := make([]string, 0, len(tags))
		for _, t := range tags {
			out = append(out, t.Name+"@"+strconv.FormatFloat(t.SimTime, 'f', 3, 64))
		}
		reply := l.reply(msg, message.LogInfoTags)
		_ = reply.SetStringList(message.ParamTags, out)
		l.send(reply)
	case message.LogReqAddIgnoredActor:
		if id, err := msg.GetActorID(message.ParamIgnoredActor); err == nil && !id.IsNull() {
			l.ignoredActors[id] = true
		}
	case message.LogReqRemoveIgnoredActor:
		if id, err := msg.GetActorID(message.ParamIgnoredActor); err == nil {
			delete(l.ignoredActors, id)
		}
	case message.LogReqClearIgnoreList:
		clear(l.ignoredActors)
	case message.LogReqAddIgnoredType:
		if name, err := msg.GetStr(message.ParamMessageType); err == nil && name != "" {
			l.ignoredTypes[name] = true
		}
	case message.LogReqRemoveIgnoredType:
		if name, err := msg.GetStr(message.ParamMessageType); err == nil {
			delete(l.ignoredTypes, name)
		}
	case message.LogReqClearIgnoredTypes:
		clear(l.ignoredTypes)
	}
	return nil
}

var (
	errNoLog          = errors.New("no log selected")
	errRecordPlayback = errors.New("cannot record during playback")
)

func (l *ServerLogger) startRecord(ctx context.Context) error {
	switch {
	case l.state == LoggerRecord:
		return nil
	case l.state == LoggerPlayback:
		return errRecordPlayback
	case l.logName == "":
		return errNoLog
	}
	if err := l.stream.Create(ctx, l.logName); err != nil {
		return err
	}
	l.state = LoggerRecord
	l.started = l.now()
	l.count = 0
	l.log.Info("recording started", zap.String("log", l.logName))
	return nil
}

func (l *ServerLogger) startPlayback(ctx context.Context) error {
	if l.state == LoggerPlayback {
		return nil
	}
	if l.logName == "" {
		return errNoLog
	}
	l.stop(ctx)
	entries, err := l.stream.Entries(ctx, l.logName)
	if err != nil {
		return err
	}
	l.entries = entries
	l.cursor = 0
	l.count = 0
	l.playbackDone = false
	l.started = l.now()
	l.state = LoggerPlayback
	l.log.Info("playback started", zap.String("log", l.logName), zap.Int("entries", len(entries)))
	return nil
}

func (l *ServerLogger) stop(ctx context.Context) {
	if l.state == LoggerRecord {
		if err := l.stream.Flush(ctx); err != nil {
			l.log.Error("log flush failed", zap.String("log", l.logName), zap.Error(err))
		}
		l.log.Info("recording stopped", zap.String("log", l.logName), zap.Int64("messages", l.count))
	}
	l.state = LoggerIdle
	l.entries = nil
	l.cursor = 0
}

// reply builds a response addressed to the machine that sent req.
func (l *ServerLogger) reply(req *message.Message, t *message.Type) *message.Message {
	m := l.GameManager().MessageFactory().CreateMessage(t)
	m.Destination = req.Source
	return m
}

func (l *ServerLogger) send(m *message.Message) {
	g := l.GameManager()
	if m.Destination == nil || m.Destination.Equal(g.MachineInfo()) {
		g.SendMessage(m)
		return
	}
	g.SendNetworkMessage(m)
}

func (l *ServerLogger) sendStatus(req *message.Message) {
	m := l.reply(req, message.LogInfoStatus)
	_ = m.SetEnum(message.ParamLoggerState, l.state.String())
	_ = m.SetStr(message.ParamLogName, l.logName)
	_ = m.SetInt64(message.ParamMessageCount, l.count)
	_ = m.SetDouble(message.ParamCurrentTime, l.now()-l.started)
	l.send(m)
}

func (l *ServerLogger) sendLogs(ctx context.Context, req *message.Message) {
	names, err := l.stream.Logs(ctx)
	if err != nil {
		l.GameManager().RejectMessage(req, err.Error())
		return
	}
	m := l.reply(req, message.LogInfoLogs)
	_ = m.SetStringList(message.ParamLogNames, names)
	l.send(m)
}
