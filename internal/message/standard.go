package message

// Standard holds the engine's built-in message types. It is filled once
// during package initialization and only read afterwards.
var Standard = NewTypeRegistry()

// UserTypeBase is the first id free for application-defined types.
const UserTypeBase uint16 = 1000

const (
	CategoryTick    = "Tick"
	CategorySystem  = "System"
	CategoryInfo    = "Info"
	CategoryRequest = "Request"
	CategoryCommand = "Command"
	CategoryServer  = "Server"
	CategoryNetwork = "Network"
	CategoryLogger  = "Logger"
)

// Tick and frame
var (
	TickLocal      = Standard.MustRegister("Tick Local", CategoryTick, "Signal for local tick", 0)
	TickRemote     = Standard.MustRegister("Tick Remote", CategoryTick, "Signal for remote tick", 1)
	TickEndOfFrame = Standard.MustRegister("Tick End of Frame", CategoryTick, "Sent to components after all frame work", 2)
	FrameSynch     = Standard.MustRegister("Frame Synch", CategorySystem, "Sent after the scene is traversed", 5)
	PostFrame      = Standard.MustRegister("Post Frame", CategorySystem, "Sent after the frame is drawn", 6)
)

// Info
var (
	InfoTimerElapsed   = Standard.MustRegister("Timer Elapsed", CategoryInfo, "A game manager timer fired", 10)
	InfoActorCreated   = Standard.MustRegister("Actor Created", CategoryInfo, "An actor was added to the game manager", 11)
	InfoActorPublished = Standard.MustRegister("Actor Published", CategoryInfo, "A local actor was published to the network", 12)
	InfoActorDeleted   = Standard.MustRegister("Actor Deleted", CategoryInfo, "An actor was deleted", 13)
	InfoActorUpdated   = Standard.MustRegister("Actor Updated", CategoryInfo, "Actor properties changed", 14)
	InfoPaused         = Standard.MustRegister("Paused", CategoryInfo, "Simulation paused", 15)
	InfoResumed        = Standard.MustRegister("Resumed", CategoryInfo, "Simulation resumed", 16)
	InfoTimeChanged    = Standard.MustRegister("Time Changed", CategoryInfo, "Simulation time settings changed", 17)
	InfoMapChangeBegin = Standard.MustRegister("Map Change Begin", CategoryInfo, "A map change started", 20)
	InfoMapUnloadBegin = Standard.MustRegister("Map Unload Begin", CategoryInfo, "A map is about to be closed", 21)
	InfoMapUnloaded    = Standard.MustRegister("Map Unloaded", CategoryInfo, "A map was closed", 22)
	InfoMapLoaded      = Standard.MustRegister("Map Loaded", CategoryInfo, "A map was opened", 23)
	InfoMapChanged     = Standard.MustRegister("Map Changed", CategoryInfo, "A map change completed", 24)
	InfoMapsOpened     = Standard.MustRegister("Maps Opened", CategoryInfo, "Additional maps were opened", 25)
	InfoMapsClosed     = Standard.MustRegister("Maps Closed", CategoryInfo, "Additional maps were closed", 26)
)

// Network
var (
	InfoClientConnected       = Standard.MustRegister("Client Connected", CategoryNetwork, "A peer connected", 30)
	NetClientNotifyDisconnect = Standard.MustRegister("Client Disconnect", CategoryNetwork, "A peer disconnected", 31)
)

// Requests, commands and server replies
var (
	RequestPause          = Standard.MustRegister("Request Pause", CategoryRequest, "Ask the server to pause", 40)
	RequestResume         = Standard.MustRegister("Request Resume", CategoryRequest, "Ask the server to resume", 41)
	RequestSetTime        = Standard.MustRegister("Request Set Time", CategoryRequest, "Ask the server to change time settings", 42)
	CommandPause          = Standard.MustRegister("Command Pause", CategoryCommand, "Pause the simulation", 45)
	CommandResume         = Standard.MustRegister("Command Resume", CategoryCommand, "Resume the simulation", 46)
	CommandSetTime        = Standard.MustRegister("Command Set Time", CategoryCommand, "Change time settings", 47)
	ServerRequestRejected = Standard.MustRegister("Server Request Rejected", CategoryServer, "A request was rejected", 50)
)

// Server logger
var (
	LogReqChangeStateRecord      = Standard.MustRegister("Change State Record", CategoryLogger, "Start recording", 60)
	LogReqChangeStatePlayback    = Standard.MustRegister("Change State Playback", CategoryLogger, "Start playback", 61)
	LogReqChangeStateIdle        = Standard.MustRegister("Change State Idle", CategoryLogger, "Stop recording or playback", 62)
	LogReqGetStatus              = Standard.MustRegister("Get Status", CategoryLogger, "Request logger status", 63)
	LogReqGetLogs                = Standard.MustRegister("Get Logs", CategoryLogger, "Request log names", 64)
	LogReqSetLog                 = Standard.MustRegister("Set Log", CategoryLogger, "Select the log to record or play", 65)
	LogReqDeleteLog              = Standard.MustRegister("Delete Log", CategoryLogger, "Delete a log", 66)
	LogReqInsertTag              = Standard.MustRegister("Insert Tag", CategoryLogger, "Tag the recording", 67)
	LogReqGetTags                = Standard.MustRegister("Get Tags", CategoryLogger, "Request tags", 68)
	LogReqAddIgnoredActor        = Standard.MustRegister("Add Ignored Actor", CategoryLogger, "Stop recording an actor", 69)
	LogReqRemoveIgnoredActor     = Standard.MustRegister("Remove Ignored Actor", CategoryLogger, "Resume recording an actor", 70)
	LogReqClearIgnoreList        = Standard.MustRegister("Clear Ignore List", CategoryLogger, "Record all actors", 71)
	LogReqAddIgnoredType         = Standard.MustRegister("Add Ignored Message Type", CategoryLogger, "Stop recording a message type", 72)
	LogReqRemoveIgnoredType      = Standard.MustRegister("Remove Ignored Message Type", CategoryLogger, "Resume recording a message type", 73)
	LogReqClearIgnoredTypes      = Standard.MustRegister("Clear Ignored Message Types", CategoryLogger, "Record all message types", 74)
	LogInfoStatus                = Standard.MustRegister("Status", CategoryLogger, "Logger status", 80)
	LogInfoLogs                  = Standard.MustRegister("Logs", CategoryLogger, "Available logs", 81)
	LogInfoTags                  = Standard.MustRegister("Tags", CategoryLogger, "Tags in the current log", 82)
	LogInfoPlaybackEndOfMessages = Standard.MustRegister("Playback End Of Messages", CategoryLogger, "Playback reached the end of the log", 83)
)
