package zwave

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// Transport is the byte pipe a Driver reads frames from and writes
// frames to. serial.Port satisfies it directly; tests satisfy it with an
// in-memory fake port.
type Transport interface {
	io.Reader
	io.Writer
	io.Closer
}

// Driver is the orchestrating core of a Z-Wave network: one serial
// transport, one send-queue engine, one expected-reply state machine, a
// node table, a controller-command state machine, a notification bus,
// and a poll engine, all owned by a single orchestrating goroutine.
// Three cooperating goroutines do the actual work: a reader loop that
// turns transport bytes into decoded frames, a poll loop that paces
// PollEngine.Tick, and the main loop that owns every other piece of
// state and is the only thing that ever touches rf (the in-flight
// transaction) or writes to the transport.
type Driver struct {
	cfg *Config

	transport Transport
	codec     *Codec

	queues *SendQueues
	rf     *ExpectedReplyMachine
	nodes  *NodeTable
	ctrl   *ControllerStateMachine
	notify *NotificationBus
	poll   *PollEngine
	stats  *DriverStats
	cache  ConfigCache
	logger Logger

	// Controller identity and capabilities, filled during the init
	// handshake and read-only afterwards. Written only by the main-loop
	// goroutine; Snapshot is the cross-goroutine read path.
	homeID           uint32
	ctrlNodeID       byte
	sucNodeID        byte
	libraryVersion   string
	libraryType      byte
	serialAPIVersion [2]byte
	manufacturerID   uint16
	productType      uint16
	productID        uint16
	apiMask          [32]byte
	initCaps         byte
	controllerCaps   byte
	startTime        time.Time

	// awakeQueried/allQueried latch the two mesh-query milestones so
	// their notifications fire exactly once.
	awakeQueried bool
	allQueried   bool

	cachedNodes map[byte]CachedNode

	cbCounter atomic.Uint32

	frames chan frameOrError

	driverCtx    context.Context
	driverCancel context.CancelFunc
	wg           sync.WaitGroup

	stateReq chan chan DriverSnapshot

	closeOnce sync.Once
}

type frameOrError struct {
	result ReadResult
	err    error
}

// DriverSnapshot is the read-only view returned over stateReq: a
// request channel carrying a reply channel, so a caller goroutine can
// get a consistent snapshot without racing the main loop's exclusive
// ownership of rf/nodes/ctrl.
type DriverSnapshot struct {
	Stats    Snapshot
	InFlight InFlight

	Command      ControllerCommand
	CommandID    string
	CommandState ControllerState

	HomeID           uint32
	ControllerNodeID byte
	SUCNodeID        byte
	LibraryVersion   string
	LibraryType      byte
	SerialAPIVersion [2]byte
	ManufacturerID   uint16
	ProductType      uint16
	ProductID        uint16
	APIMask          [32]byte
	InitCaps         byte
	ControllerCaps   byte
	StartTime        time.Time

	AwakeQueried bool
	AllQueried   bool
}

// Controller capability flag bits reported by GetControllerCapabilities.
const (
	controllerCapsSecondary      byte = 0x01
	controllerCapsOnOtherNetwork byte = 0x02
	controllerCapsSIS            byte = 0x04
	controllerCapsRealPrimary    byte = 0x08
	controllerCapsSUC            byte = 0x10
)

// IsPrimaryController reports whether this controller is the network's
// primary (i.e. not flagged secondary).
func (s DriverSnapshot) IsPrimaryController() bool {
	return s.ControllerCaps&controllerCapsSecondary == 0
}

// IsStaticUpdateController reports whether this controller currently
// holds the SUC role.
func (s DriverSnapshot) IsStaticUpdateController() bool {
	return s.ControllerCaps&controllerCapsSUC != 0
}

// HasSIS reports whether a SUC ID Server is present on the network.
func (s DriverSnapshot) HasSIS() bool {
	return s.ControllerCaps&controllerCapsSIS != 0
}

// IsBridgeController reports whether the controller's library is the
// bridge variant.
func (s DriverSnapshot) IsBridgeController() bool { return s.LibraryType == 7 }

// Open starts a Driver reading and writing transport. It launches the
// reader, poll and main-loop goroutines and kicks off the init
// handshake sequence, but does not block waiting for it to finish;
// watch for NotifyDriverReady/NotifyDriverFailed.
func Open(transport Transport, opts ...Option) *Driver {
	cfg := applyConfig(opts)

	d := &Driver{
		cfg:       cfg,
		transport: transport,
		codec:     NewCodec(transport),
		queues:    NewSendQueues(),
		nodes:     NewNodeTable(),
		ctrl:      NewControllerStateMachine(),
		notify:    NewNotificationBus(),
		stats:     cfg.Stats,
		cache:     cfg.Cache,
		logger:    cfg.Logger,
		startTime: time.Now(),
		frames:    make(chan frameOrError, 16),
		stateReq:  make(chan chan DriverSnapshot),
	}
	d.rf = NewExpectedReplyMachine(d.queues, d.stats)
	d.rf.setTimeouts(cfg.AckTimeout, cfg.OverallTimeout, cfg.MaxAttempts)
	d.poll = NewPollEngine(cfg.PollMode, cfg.PollInterval, d.buildPollMessage)
	d.driverCtx, d.driverCancel = context.WithCancel(cfg.ctx)

	d.wg.Add(3)
	go d.readLoop()
	go d.pollLoop()
	go d.mainLoop()

	return d
}

// Notify registers w on the notification bus. Call before relying on any
// notification arriving; there is no replay of history.
func (d *Driver) Notify(w Watcher) { d.notify.Watch(w) }

// Nodes returns the node table, safe to Range/Get concurrently with the
// main loop (NodeTable has its own locking).
func (d *Driver) Nodes() *NodeTable { return d.nodes }

// Queues returns the send-queue engine, so host code can enqueue
// outbound traffic directly onto a chosen band.
func (d *Driver) Queues() *SendQueues { return d.queues }

// Poll returns the rotating poll engine.
func (d *Driver) Poll() *PollEngine { return d.poll }

// Stats returns a point-in-time snapshot of the driver-global counters.
func (d *Driver) Stats() Snapshot { return d.stats.Snapshot() }

// Snapshot blocks until the main loop can safely report a consistent
// view of its internal state.
func (d *Driver) Snapshot() (DriverSnapshot, error) {
	reply := make(chan DriverSnapshot, 1)
	select {
	case d.stateReq <- reply:
	case <-d.driverCtx.Done():
		return DriverSnapshot{}, ErrDriverClosed
	}
	select {
	case s := <-reply:
		return s, nil
	case <-d.driverCtx.Done():
		return DriverSnapshot{}, ErrDriverClosed
	}
}

func (d *Driver) buildSnapshot() DriverSnapshot {
	cmd, cmdID, cmdState := d.ctrl.Active()
	return DriverSnapshot{
		Stats:    d.stats.Snapshot(),
		InFlight: d.rf.Snapshot(),

		Command:      cmd,
		CommandID:    cmdID,
		CommandState: cmdState,

		HomeID:           d.homeID,
		ControllerNodeID: d.ctrlNodeID,
		SUCNodeID:        d.sucNodeID,
		LibraryVersion:   d.libraryVersion,
		LibraryType:      d.libraryType,
		SerialAPIVersion: d.serialAPIVersion,
		ManufacturerID:   d.manufacturerID,
		ProductType:      d.productType,
		ProductID:        d.productID,
		APIMask:          d.apiMask,
		InitCaps:         d.initCaps,
		ControllerCaps:   d.controllerCaps,
		StartTime:        d.startTime,

		AwakeQueried: d.awakeQueried,
		AllQueried:   d.allQueried,
	}
}

// nextCallbackID returns the next value of the rotating callback-id
// counter, skipping zero (zero means "no callback expected").
func (d *Driver) nextCallbackID() byte {
	for {
		if v := byte(d.cbCounter.Add(1)); v != 0 {
			return v
		}
	}
}

// SendData enqueues a ZW_SEND_DATA frame carrying ccPayload to nodeID on
// band, and returns the callback id the controller will echo when radio
// delivery completes. Traffic to a known non-listening node is flagged
// for WakeUp migration on terminal failure.
func (d *Driver) SendData(nodeID byte, ccPayload []byte, txOptions TXOption, band Band) byte {
	cbID := d.nextCallbackID()
	payload := make([]byte, 0, len(ccPayload)+4)
	payload = append(payload, nodeID, byte(len(ccPayload)))
	payload = append(payload, ccPayload...)
	payload = append(payload, byte(txOptions), cbID)

	canSleep := false
	if n := d.nodes.Get(nodeID); n != nil {
		n.mu.Lock()
		canSleep = !n.Listening
		n.mu.Unlock()
	}

	var ccID byte
	if len(ccPayload) > 0 {
		ccID = ccPayload[0]
	}
	d.queues.SendMessage(band, Message{
		Frame:                Frame{Type: FrameTypeRequest, FunctionID: FuncZWSendData, Payload: payload},
		TargetNodeID:         nodeID,
		ExpectedReply:        FuncZWSendData,
		ExpectedCallbackID:   cbID,
		ExpectedCommandClass: ccID,
		CanSleep:             canSleep,
	})
	return cbID
}

// TestNetwork sends count no-operation frames to nodeID, exercising the
// RF path end to end; delivery results land in the usual statistics.
func (d *Driver) TestNetwork(nodeID byte, count int) {
	const ccNoOperation = 0x00
	for i := 0; i < count; i++ {
		d.SendData(nodeID, []byte{ccNoOperation}, DefaultTXOptions, BandSend)
	}
}

// SoftReset asks the stick to restart its serial API without forgetting
// the network.
func (d *Driver) SoftReset() {
	d.stats.SoftResets.Add(1)
	d.queues.SendMessage(BandCommand, Message{
		Frame: Frame{Type: FrameTypeRequest, FunctionID: FuncSerialAPISoftReset},
	})
}

// ResetController factory-resets the stick, erasing its network. All
// node state learned so far becomes invalid; the host should expect a
// NotifyDriverReset and re-open the driver.
func (d *Driver) ResetController() {
	d.stats.HardResets.Add(1)
	cbID := d.nextCallbackID()
	d.queues.SendMessage(BandCommand, Message{
		Frame:              Frame{Type: FrameTypeRequest, FunctionID: FuncZWSetDefault, Payload: []byte{cbID}},
		ExpectedCallbackID: cbID,
	})
	d.notify.Post(Notification{Type: NotifyDriverReset})
}

// EnablePoll adds id to the poll rotation at the given intensity.
func (d *Driver) EnablePoll(id ValueID, intensity PollIntensity) {
	d.poll.Enable(id, intensity)
	d.notify.Post(Notification{Type: NotifyPollingEnabled, NodeID: id.NodeID, ValueID: id})
}

// DisablePoll removes id from the poll rotation.
func (d *Driver) DisablePoll(id ValueID) {
	d.poll.Enable(id, PollNone)
	d.notify.Post(Notification{Type: NotifyPollingDisabled, NodeID: id.NodeID, ValueID: id})
}

// SetPollInterval retargets the poll engine's pacing.
func (d *Driver) SetPollInterval(interval time.Duration, intervalBetweenPolls bool) {
	mode := DispatchIntervalPerCycle
	if intervalBetweenPolls {
		mode = DispatchIntervalBetweenPolls
	}
	d.poll.SetPacing(interval, mode)
}

// BeginControllerCommand starts an administrative sequence, failing with
// ErrControllerCommandBusy if one is already active. The returned id
// correlates this run with its log lines and callback invocation.
func (d *Driver) BeginControllerCommand(cmd ControllerCommand, cb ControllerCallback, args ControllerCommandArgs) (string, error) {
	id, err := d.ctrl.Begin(cmd, cb)
	if err != nil {
		return "", err
	}
	d.ctrl.setArgs(args)

	msg, err := d.buildControllerCommandMessage(cmd, args)
	if err != nil {
		d.ctrl.UpdateState(ControllerStateError, err)
		return "", err
	}
	if cmd == ControllerCommandAssignReturnRoute {
		d.ctrl.Routes().Begin(args.NodeID)
	}
	d.queues.SendMessage(BandCommand, msg)
	d.logger.Info("controller command started", "command", cmd.String(), "id", id, "node", args.NodeID)
	return id, nil
}

// buildControllerCommandMessage maps a controller command onto the
// serial-API frame that initiates it.
func (d *Driver) buildControllerCommandMessage(cmd ControllerCommand, args ControllerCommandArgs) (Message, error) {
	cbID := d.nextCallbackID()
	mode := func(base byte) byte {
		if args.HighPower {
			base |= nodeModeHighPower
		}
		return base
	}
	req := func(fn FunctionID, reply bool, payload ...byte) (Message, error) {
		m := Message{
			Frame:              Frame{Type: FrameTypeRequest, FunctionID: fn, Payload: payload},
			TargetNodeID:       args.NodeID,
			ExpectedCallbackID: cbID,
		}
		if reply {
			m.ExpectedReply = fn
		}
		return m, nil
	}

	switch cmd {
	case ControllerCommandAddController:
		return req(FuncZWAddNodeToNetwork, false, mode(nodeModeController), cbID)
	case ControllerCommandAddDevice:
		return req(FuncZWAddNodeToNetwork, false, mode(nodeModeAny), cbID)
	case ControllerCommandCreateNewPrimary:
		return req(FuncZWCreateNewPrimary, false, mode(nodeModeAny), cbID)
	case ControllerCommandReceiveConfiguration:
		return req(FuncZWSetLearnMode, true, learnModeStarted, cbID)
	case ControllerCommandRemoveController:
		return req(FuncZWRemoveNodeFromNetwork, false, mode(nodeModeController), cbID)
	case ControllerCommandRemoveDevice:
		return req(FuncZWRemoveNodeFromNetwork, false, mode(nodeModeAny), cbID)
	case ControllerCommandRemoveFailedNode:
		return req(FuncZWRemoveFailedNode, true, args.NodeID, cbID)
	case ControllerCommandHasNodeFailed:
		m, _ := req(FuncZWIsFailedNode, true, args.NodeID)
		m.ExpectedCallbackID = 0
		return m, nil
	case ControllerCommandReplaceFailedNode:
		return req(FuncZWReplaceFailedNode, true, args.NodeID, cbID)
	case ControllerCommandTransferPrimaryRole:
		return req(FuncZWControllerChange, false, mode(nodeModeController), cbID)
	case ControllerCommandRequestNetworkUpdate:
		return req(FuncZWRequestNetworkUpdate, true, cbID)
	case ControllerCommandRequestNodeNeighborUpdate:
		return req(FuncZWRequestNodeNeighborUpdate, false, args.NodeID, cbID)
	case ControllerCommandAssignReturnRoute, ControllerCommandDeleteAllReturnRoutes:
		// Both begin by deleting the node's existing return routes;
		// AssignReturnRoute continues from the delete callback.
		return req(FuncZWDeleteReturnRoute, true, args.NodeID, cbID)
	case ControllerCommandCreateButton:
		return req(FuncZWSetSlaveLearnMode, true, args.NodeID, 0x01, cbID)
	case ControllerCommandDeleteButton:
		return req(FuncZWSetSlaveLearnMode, true, args.NodeID, 0x00, cbID)
	default:
		return Message{}, &ControllerCommandError{Command: cmd, Reason: "command cannot be initiated"}
	}
}

// CancelControllerCommand aborts whatever controller command is active,
// sending the matching stop frame to the controller first.
func (d *Driver) CancelControllerCommand() error {
	cmd, _, _ := d.ctrl.Active()
	switch cmd {
	case ControllerCommandAddController, ControllerCommandAddDevice:
		d.enqueueAdminStop(FuncZWAddNodeToNetwork)
	case ControllerCommandRemoveController, ControllerCommandRemoveDevice:
		d.enqueueAdminStop(FuncZWRemoveNodeFromNetwork)
	case ControllerCommandCreateNewPrimary:
		d.enqueueAdminStop(FuncZWCreateNewPrimary)
	case ControllerCommandTransferPrimaryRole:
		d.enqueueAdminStop(FuncZWControllerChange)
	case ControllerCommandReceiveConfiguration:
		d.queues.SendMessage(BandCommand, Message{
			Frame: Frame{Type: FrameTypeRequest, FunctionID: FuncZWSetLearnMode, Payload: []byte{0x00, 0x00}},
		})
	}
	return d.ctrl.Cancel()
}

func (d *Driver) enqueueAdminStop(fn FunctionID) {
	d.queues.SendMessage(BandCommand, Message{
		Frame: Frame{Type: FrameTypeRequest, FunctionID: fn, Payload: []byte{nodeModeStop, 0x00}},
	})
}

// HealNetwork walks every known routing node and requests a neighbor
// update for it, one controller command at a time. It returns
// immediately; progress is visible through the per-command callbacks and
// the usual notifications.
func (d *Driver) HealNetwork() {
	var ids []byte
	d.nodes.Range(func(n *Node) {
		n.mu.Lock()
		routing := n.Routing
		n.mu.Unlock()
		if routing {
			ids = append(ids, n.ID)
		}
	})

	go func() {
		for _, id := range ids {
			done := make(chan struct{})
			_, err := d.BeginControllerCommand(ControllerCommandRequestNodeNeighborUpdate,
				func(ControllerCommand, ControllerState, error) { close(done) },
				ControllerCommandArgs{NodeID: id})
			if err != nil {
				d.logger.Warn("heal: neighbor update not started", "node", id, "error", err)
				return
			}
			select {
			case <-done:
			case <-d.driverCtx.Done():
				return
			}
		}
	}()
}

// Close tears down all three goroutines and closes the transport. The
// transport is closed first so a reader blocked on it wakes up. Safe to
// call more than once.
func (d *Driver) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.driverCancel()
		err = d.transport.Close()
	})
	d.wg.Wait()
	return err
}

// readLoop turns transport bytes into frameOrError values for the main
// loop. It's the one goroutine that calls codec.ReadNext, so Codec's
// lack of internal locking is safe.
func (d *Driver) readLoop() {
	defer d.wg.Done()
	var seen CodecStats
	for {
		result, err := d.codec.ReadNext()
		d.syncCodecStats(&seen)
		var pe *ProtocolError
		if errors.As(err, &pe) {
			d.stats.Callbacks.Add(1)
		}
		select {
		case d.frames <- frameOrError{result: result, err: err}:
		case <-d.driverCtx.Done():
			return
		}
		if err != nil && !isRecoverableFrameError(err) {
			return
		}
	}
}

// syncCodecStats folds the codec's framing counters into the shared
// atomic DriverStats. The codec itself is single-goroutine (owned by
// readLoop), so plain-uint64 counters plus this delta copy avoid putting
// atomics on the per-byte hot path.
func (d *Driver) syncCodecStats(seen *CodecStats) {
	cur := d.codec.Stats
	d.stats.SOF.Add(cur.SOF - seen.SOF)
	d.stats.OOF.Add(cur.OOF - seen.OOF)
	d.stats.BadChecksum.Add(cur.BadChecksum - seen.BadChecksum)
	*seen = cur
}

// sleepInterruptible waits for dur or until the driver is closing,
// whichever comes first.
func (d *Driver) sleepInterruptible(dur time.Duration) bool {
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-d.driverCtx.Done():
		return false
	}
}

// pollLoop paces PollEngine.Tick, enqueueing onto the Poll band; the
// main loop is the only thing that ever dequeues and sends, so this
// goroutine never touches the transport.
func (d *Driver) pollLoop() {
	defer d.wg.Done()
	pacer := NewAdaptivePoll(d.cfg.PollFast, d.cfg.PollSteady)
	for {
		select {
		case <-d.driverCtx.Done():
			return
		default:
		}

		if d.poll.Len() == 0 {
			if !d.sleepInterruptible(pacer.Interval()) {
				return
			}
			continue
		}
		pacer.Reset()

		interval, mode := d.poll.Pacing()
		if err := d.poll.Tick(d.queues); err != nil {
			d.logger.Warn("poll tick failed", "error", err)
		}
		if mode == DispatchIntervalPerCycle && !d.poll.AtCycleStart() {
			continue
		}
		if !d.sleepInterruptible(interval) {
			return
		}
	}
}

func (d *Driver) buildPollMessage(id ValueID) (Message, error) {
	h, ok := LookupCommandClassHandler(id.CommandClass)
	if !ok {
		return Message{}, fmt.Errorf("zwave: no command-class handler registered for 0x%02x", id.CommandClass)
	}
	return h.BuildGet(id)
}

// mainLoop is the single orchestrating goroutine: it drains
// notifications at the top of every iteration with no
// node-table lock held, services stateReq queries, evaluates retry/drop
// timers, dispatches inbound frames, and pops the next sendable queue
// item when idle.
func (d *Driver) mainLoop() {
	defer d.wg.Done()

	d.runInitHandshake()

	ackTicker := time.NewTicker(50 * time.Millisecond)
	defer ackTicker.Stop()

	for {
		d.notify.Drain()

		select {
		case <-d.driverCtx.Done():
			return

		case reply := <-d.stateReq:
			reply <- d.buildSnapshot()

		case fe := <-d.frames:
			if fe.err != nil {
				if isRecoverableFrameError(fe.err) {
					d.nakInbound()
					continue
				}
				d.logger.Error("transport read failed, closing driver", "error", fe.err)
				d.notify.Post(Notification{Type: NotifyDriverFailed})
				d.notify.Drain()
				d.driverCancel()
				return
			}
			d.handleInbound(fe.result)
			d.trySend()

		case <-d.queues.Ready():
			d.trySend()

		case <-ackTicker.C:
			d.tickTimers()
			d.trySend()
		}
	}
}

// nakInbound tells the controller its last frame didn't survive the
// wire.
func (d *Driver) nakInbound() {
	if _, err := d.transport.Write(NAKToken); err != nil {
		d.logger.Warn("failed to nak corrupt frame", "error", err)
	}
}

// trySend pops and sends the next sendable item if the expected-reply
// machine is idle.
func (d *Driver) trySend() {
	if !d.rf.IsIdle() {
		return
	}
	item, band, ok := d.queues.Pop(d.isAsleep)
	if !ok {
		return
	}
	if item.isQueryComplete {
		d.handleQueryComplete(item.query)
		return
	}
	d.writeMessage(item.msg, band)
}

func (d *Driver) isAsleep(nodeID byte) bool {
	n := d.nodes.Get(nodeID)
	if n == nil {
		return false
	}
	return !n.Awake()
}

func (d *Driver) writeMessage(msg Message, band Band) {
	var buf bytes.Buffer
	EncodeFrame(&buf, msg.Frame)
	if _, err := d.transport.Write(buf.Bytes()); err != nil {
		d.logger.Error("write failed", "error", err)
		return
	}
	d.stats.Writes.Add(1)
	if msg.TargetNodeID == broadcastNodeID {
		d.stats.BroadcastWrites.Add(1)
	}
	if n := d.nodes.Get(msg.TargetNodeID); n != nil {
		n.stats.SentCount.Add(1)
	}
	d.rf.Begin(msg, time.Now(), band)
}

// broadcastNodeID is the all-nodes destination address.
const broadcastNodeID byte = 0xff

func (d *Driver) tickTimers() {
	if d.rf.IsIdle() {
		return
	}
	outcome, msg := d.rf.Tick(time.Now())
	switch outcome {
	case outcomeDropped:
		d.stats.NoAck.Add(1)
		if n := d.nodes.Get(msg.TargetNodeID); n != nil {
			n.stats.SentFailed.Add(1)
		}
		if msg.CanSleep && msg.TargetNodeID != 0 {
			if n := d.nodes.Get(msg.TargetNodeID); n != nil {
				n.SetAwake(false)
			}
			d.queues.MigrateNodeToWakeUp(msg.TargetNodeID)
		}
	case outcomeResent:
		if n := d.nodes.Get(msg.TargetNodeID); n != nil {
			n.stats.Retries.Add(1)
		}
	}
}

// handleInbound dispatches one decoded control byte or frame through
// the function-id dispatch table.
func (d *Driver) handleInbound(r ReadResult) {
	if !r.IsFrame {
		switch r.Control {
		case ACK:
			d.stats.Ack.Add(1)
			prev := d.rf.Snapshot()
			d.rf.OnAck()
			d.completeIfDone(prev)
		case NAK:
			d.rf.OnNakOrCan(true)
		case CAN:
			d.rf.OnNakOrCan(false)
		}
		return
	}

	d.stats.Reads.Add(1)
	if _, err := d.transport.Write(ACKToken); err != nil {
		d.logger.Warn("failed to ack inbound frame", "error", err)
	}

	f := r.Frame
	switch f.FunctionID {
	case FuncApplicationCommandHandler:
		d.handleApplicationCommand(f)
	case FuncApplicationControllerUpdate:
		d.handleApplicationUpdate(f)
	case FuncZWSendData:
		d.handleSendData(f)
	case FuncZWAddNodeToNetwork, FuncZWRemoveNodeFromNetwork, FuncZWCreateNewPrimary,
		FuncZWControllerChange, FuncZWSetLearnMode, FuncZWRemoveFailedNode,
		FuncZWIsFailedNode, FuncZWReplaceFailedNode, FuncZWRequestNodeNeighborUpdate,
		FuncZWRequestNetworkUpdate, FuncZWAssignReturnRoute, FuncZWDeleteReturnRoute,
		FuncZWSetSlaveLearnMode:
		d.handleControllerCallback(f)
	default:
		d.handleControllerReply(f)
	}
}

// completeIfDone releases the in-flight slot when the transaction has
// reached Done, and runs the post-transaction bookkeeping (per-node RTT,
// query-stage markers).
func (d *Driver) completeIfDone(prev InFlight) {
	if d.rf.Snapshot().State != StateDone {
		return
	}
	d.rf.Finish()
	d.afterTransaction(prev)
}

// afterTransaction runs once per completed transaction: it clears the
// target node's failure streak, records its response round-trip time,
// and, for query-stage traffic, posts the QueryStageComplete marker
// that lets the node's interrogation cursor advance.
func (d *Driver) afterTransaction(prev InFlight) {
	msg := prev.Msg
	if n := d.nodes.Get(msg.TargetNodeID); n != nil {
		n.clearNoAck()
		if !prev.sentAt.IsZero() {
			n.stats.LastResponseRTTMillis.Store(uint64(time.Since(prev.sentAt).Milliseconds()))
		}
	}
	if msg.queryRequest && msg.TargetNodeID != 0 {
		if n := d.nodes.Get(msg.TargetNodeID); n != nil && n.Stage() != QueryStageComplete {
			d.queues.EnqueueQueryComplete(n.ID, n.Stage())
		}
	}
}

// handleControllerReply handles response frames that aren't send-data or
// controller-administration traffic: capability responses during init
// retries, protocol-info replies, and anything else that matches the
// in-flight transaction.
func (d *Driver) handleControllerReply(f Frame) {
	prev := d.rf.Snapshot()
	if f.Type == FrameTypeRequest && prev.State == StateAwaitingCallback {
		if len(f.Payload) > 0 && d.rf.MatchesCallback(f.Payload[0]) {
			d.rf.OnCallback()
			d.completeIfDone(prev)
		} else {
			d.rf.OnStrayCallback()
		}
		return
	}
	if d.rf.MatchesReply(f, 0, 0) {
		d.rf.OnReply()
		d.applyQueryReply(prev.Msg, f)
		d.completeIfDone(prev)
		return
	}
	if prev.State == StateAwaitingReply {
		d.rf.OnNonMatchingReply()
		return
	}
	// Unknown or unsolicited function id: drop, count, never fatal.
	d.stats.Callbacks.Add(1)
	d.logger.Debug("unhandled frame", "function", fmt.Sprintf("0x%02x", byte(f.FunctionID)))
}

// applyQueryReply folds a matched reply's payload back into the node
// the in-flight query was addressed to.
func (d *Driver) applyQueryReply(msg Message, f Frame) {
	switch msg.Frame.FunctionID {
	case FuncZWGetNodeProtocolInfo:
		d.applyProtocolInfo(msg.TargetNodeID, f.Payload)
	}
}

// applyProtocolInfo parses a GetNodeProtocolInfo response: capability
// byte, security byte, reserved byte, then the basic/generic/specific
// device-class triple. A node that turns out to be non-listening is
// marked asleep and its pending traffic is migrated to the WakeUp band.
func (d *Driver) applyProtocolInfo(nodeID byte, payload []byte) {
	if len(payload) < 6 {
		return
	}
	n := d.nodes.Get(nodeID)
	if n == nil {
		return
	}

	caps, security := payload[0], payload[1]
	n.mu.Lock()
	n.Listening = caps&0x80 != 0
	n.Routing = caps&0x40 != 0
	n.MaxBaudRate = 9600
	if caps&0x38 == 0x10 {
		n.MaxBaudRate = 40000
	}
	n.FrequentListening = security&0x60 != 0
	n.Beaming = security&0x10 != 0
	n.Security = security&0x01 != 0
	n.Basic = payload[3]
	n.Generic = payload[4]
	n.Specific = payload[5]
	listening := n.Listening
	if !listening {
		n.awake = false
	}
	n.mu.Unlock()

	if !listening {
		d.queues.MigrateNodeToWakeUp(nodeID)
	}
	d.notify.Post(Notification{Type: NotifyNodeProtocolInfo, NodeID: nodeID})
}

// handleSendData processes both halves of a ZW_SEND_DATA exchange: the
// immediate response (did the controller accept the frame into its
// transmit queue) and the eventual callback (did the radio deliver it).
func (d *Driver) handleSendData(f Frame) {
	if f.Type == FrameTypeResponse {
		if len(f.Payload) >= 1 && f.Payload[0] == 0 {
			// Transmit queue full; back off and try again.
			d.stats.NetBusy.Add(1)
			d.rf.AbortRequeue()
			return
		}
		prev := d.rf.Snapshot()
		if d.rf.MatchesReply(f, 0, 0) {
			d.rf.OnReply()
			d.completeIfDone(prev)
		} else {
			d.rf.OnNonMatchingReply()
		}
		return
	}

	if len(f.Payload) < 2 {
		return
	}
	cbID := f.Payload[0]
	if !d.rf.MatchesCallback(cbID) {
		d.rf.OnStrayCallback()
		return
	}
	prev := d.rf.Snapshot()
	d.rf.OnCallback()
	status := SendDataStatus(f.Payload[1])
	if status == SendDataOK {
		d.completeIfDone(prev)
		return
	}
	d.rf.Finish()
	d.classifySendFailure(prev, status)
}

// classifySendFailure implements the send-data failure policy: bump
// the matching statistic, reschedule busy conditions, and
// migrate a can-sleep node's traffic to the WakeUp band after two
// consecutive no-ack failures.
func (d *Driver) classifySendFailure(prev InFlight, status SendDataStatus) {
	msg := prev.Msg
	n := d.nodes.Get(msg.TargetNodeID)

	switch status {
	case SendDataNoAck:
		d.stats.NoAck.Add(1)
		if n != nil {
			n.stats.SentFailed.Add(1)
		}
		if !msg.CanSleep || msg.TargetNodeID == 0 {
			return
		}
		d.queues.requeueFront(prev.Band, sendItem(msg))
		streak := 1
		if n != nil {
			streak = n.bumpNoAck()
		}
		if streak >= 2 {
			d.stats.NonDelivery.Add(1)
			if n != nil {
				n.SetAwake(false)
				n.clearNoAck()
			}
			d.queues.MigrateNodeToWakeUp(msg.TargetNodeID)
			d.logger.Debug("node unresponsive, traffic moved to wakeup queue", "node", msg.TargetNodeID)
		}

	case SendDataFail, SendDataNotIdle:
		d.stats.NetBusy.Add(1)
		d.queues.requeueFront(prev.Band, sendItem(msg))

	case SendDataRoutedBusy:
		d.stats.RoutedBusy.Add(1)
		d.queues.requeueFront(prev.Band, sendItem(msg))

	case SendDataNoRoute:
		d.stats.BadRoutes.Add(1)
		if n != nil {
			n.stats.SentFailed.Add(1)
		}
	}
}

// handleControllerCallback feeds controller-administration frames into
// the controller-command state machine, after first
// letting them complete the in-flight transaction like any other
// reply/callback.
func (d *Driver) handleControllerCallback(f Frame) {
	prev := d.rf.Snapshot()
	if f.Type == FrameTypeResponse {
		if d.rf.MatchesReply(f, 0, 0) {
			d.rf.OnReply()
			d.completeIfDone(prev)
		}
	} else if len(f.Payload) > 0 && d.rf.MatchesCallback(f.Payload[0]) {
		d.rf.OnCallback()
		d.completeIfDone(prev)
	}

	active, _, _ := d.ctrl.Active()
	if active == ControllerCommandNone {
		return
	}

	switch f.FunctionID {
	case FuncZWAddNodeToNetwork, FuncZWCreateNewPrimary, FuncZWControllerChange:
		d.onInclusionCallback(f, true)
	case FuncZWRemoveNodeFromNetwork:
		d.onInclusionCallback(f, false)
	case FuncZWSetLearnMode:
		d.onLearnModeCallback(f)
	case FuncZWIsFailedNode:
		d.onIsFailedNodeReply(f)
	case FuncZWRemoveFailedNode:
		d.onRemoveFailedNodeCallback(f)
	case FuncZWReplaceFailedNode:
		d.onReplaceFailedNodeCallback(f)
	case FuncZWRequestNodeNeighborUpdate:
		d.onNeighborUpdateCallback(f)
	case FuncZWRequestNetworkUpdate:
		d.onNetworkUpdateCallback(f)
	case FuncZWAssignReturnRoute, FuncZWDeleteReturnRoute:
		d.onReturnRouteCallback(f)
	case FuncZWSetSlaveLearnMode:
		d.onSlaveLearnCallback(f)
	}
}

// onInclusionCallback handles the shared status progression of
// AddNodeToNetwork, RemoveNodeFromNetwork, CreateNewPrimary and
// ControllerChange callbacks.
func (d *Driver) onInclusionCallback(f Frame, adding bool) {
	if f.Type == FrameTypeResponse || len(f.Payload) < 2 {
		return
	}
	status := f.Payload[1]
	var nodeID byte
	if len(f.Payload) >= 3 {
		nodeID = f.Payload[2]
	}

	switch status {
	case nodeStatusLearnReady:
		d.ctrl.UpdateState(ControllerStateWaiting, nil)
	case nodeStatusNodeFound:
		d.ctrl.UpdateState(ControllerStateInProgress, nil)
	case nodeStatusAddingSlave, nodeStatusAddingController:
		d.ctrl.UpdateState(ControllerStateInProgress, nil)
		if adding && nodeID != 0 {
			if n, err := d.nodes.GetOrCreate(nodeID); err == nil {
				d.notify.Post(Notification{Type: NotifyNodeAdded, NodeID: nodeID})
				n.setStage(QueryStageProtocolInfo)
				d.enqueueQueryStage(n, QueryStageProtocolInfo)
			}
		}
	case nodeStatusProtocolDone:
		d.enqueueAdminStop(f.FunctionID)
	case nodeStatusDone:
		if !adding && nodeID != 0 {
			d.removeNode(nodeID)
		}
		d.ctrl.UpdateState(ControllerStateCompleted, nil)
	case nodeStatusFailed:
		d.enqueueAdminStop(f.FunctionID)
		cmd, _, _ := d.ctrl.Active()
		d.ctrl.UpdateState(ControllerStateFailed, &ControllerCommandError{Command: cmd, Reason: "controller reported failure"})
	}
}

// removeNode drops nodeID's table entry and its stored values and posts
// NotifyNodeRemoved. Items still queued for the node stay in the send
// queues.
func (d *Driver) removeNode(nodeID byte) {
	d.nodes.Remove(nodeID)
	d.cfg.ValueStore.RemoveNode(nodeID)
	d.notify.Post(Notification{Type: NotifyNodeRemoved, NodeID: nodeID})
}

func (d *Driver) onLearnModeCallback(f Frame) {
	if f.Type == FrameTypeResponse || len(f.Payload) < 2 {
		return
	}
	switch f.Payload[1] {
	case learnModeStarted:
		d.ctrl.UpdateState(ControllerStateWaiting, nil)
	case learnModeDone:
		d.ctrl.UpdateState(ControllerStateCompleted, nil)
	case learnModeFailed:
		d.ctrl.UpdateState(ControllerStateFailed, &ControllerCommandError{
			Command: ControllerCommandReceiveConfiguration, Reason: "learn mode failed",
		})
	}
}

// onIsFailedNodeReply terminates HasNodeFailed in one of its two extra
// terminal states: the response's return value is the verdict.
func (d *Driver) onIsFailedNodeReply(f Frame) {
	if f.Type != FrameTypeResponse || len(f.Payload) < 1 {
		return
	}
	if f.Payload[0] != 0 {
		d.ctrl.UpdateState(ControllerStateNodeFailed, nil)
	} else {
		d.ctrl.UpdateState(ControllerStateNodeOK, nil)
	}
}

func (d *Driver) onRemoveFailedNodeCallback(f Frame) {
	if f.Type == FrameTypeResponse {
		if len(f.Payload) >= 1 && f.Payload[0] != 0 {
			d.ctrl.UpdateState(ControllerStateFailed, &ControllerCommandError{
				Command: ControllerCommandRemoveFailedNode, Reason: "controller rejected removal",
			})
		} else {
			d.ctrl.UpdateState(ControllerStateInProgress, nil)
		}
		return
	}
	if len(f.Payload) < 2 {
		return
	}
	if f.Payload[1] == failedNodeRemoved {
		d.removeNode(d.ctrl.Args().NodeID)
		d.ctrl.UpdateState(ControllerStateCompleted, nil)
	} else {
		d.ctrl.UpdateState(ControllerStateFailed, &ControllerCommandError{
			Command: ControllerCommandRemoveFailedNode, Reason: "node not removed",
		})
	}
}

func (d *Driver) onReplaceFailedNodeCallback(f Frame) {
	if f.Type == FrameTypeResponse {
		if len(f.Payload) >= 1 && f.Payload[0] != 0 {
			d.ctrl.UpdateState(ControllerStateFailed, &ControllerCommandError{
				Command: ControllerCommandReplaceFailedNode, Reason: "controller rejected replacement",
			})
		} else {
			d.ctrl.UpdateState(ControllerStateInProgress, nil)
		}
		return
	}
	if len(f.Payload) < 2 {
		return
	}
	switch f.Payload[1] {
	case failedNodeReplaceWaiting:
		d.ctrl.UpdateState(ControllerStateWaiting, nil)
	case failedNodeReplaceDone:
		// The replacement is a brand-new device behind the old id;
		// everything learned about it must be re-queried.
		if n := d.nodes.Get(d.ctrl.Args().NodeID); n != nil {
			n.setStage(QueryStageProtocolInfo)
			d.enqueueQueryStage(n, QueryStageProtocolInfo)
		}
		d.ctrl.UpdateState(ControllerStateCompleted, nil)
	case failedNodeReplaceFailed:
		d.ctrl.UpdateState(ControllerStateFailed, &ControllerCommandError{
			Command: ControllerCommandReplaceFailedNode, Reason: "replacement failed",
		})
	}
}

func (d *Driver) onNeighborUpdateCallback(f Frame) {
	if f.Type == FrameTypeResponse || len(f.Payload) < 2 {
		return
	}
	switch f.Payload[1] {
	case neighborUpdateStarted:
		d.ctrl.UpdateState(ControllerStateInProgress, nil)
	case neighborUpdateDone:
		d.ctrl.UpdateState(ControllerStateCompleted, nil)
	case neighborUpdateFailed:
		d.ctrl.UpdateState(ControllerStateFailed, &ControllerCommandError{
			Command: ControllerCommandRequestNodeNeighborUpdate, Reason: "neighbor update failed",
		})
	}
}

func (d *Driver) onNetworkUpdateCallback(f Frame) {
	if f.Type == FrameTypeResponse {
		if len(f.Payload) >= 1 && f.Payload[0] == 0 {
			d.ctrl.UpdateState(ControllerStateFailed, &ControllerCommandError{
				Command: ControllerCommandRequestNetworkUpdate, Reason: "no SUC present",
			})
		}
		return
	}
	if len(f.Payload) < 2 {
		return
	}
	if f.Payload[1] == 0 {
		d.ctrl.UpdateState(ControllerStateCompleted, nil)
	} else {
		d.ctrl.UpdateState(ControllerStateFailed, &ControllerCommandError{
			Command: ControllerCommandRequestNetworkUpdate, Reason: "network update failed",
		})
	}
}

// onReturnRouteCallback drives the UpdateNodeRoutes sub-machine: delete
// the node's routes, then assign the new target, advancing one stage per
// confirmed transmission.
func (d *Driver) onReturnRouteCallback(f Frame) {
	cmd, _, _ := d.ctrl.Active()
	if f.Type == FrameTypeResponse {
		if len(f.Payload) >= 1 && f.Payload[0] == 0 {
			d.ctrl.UpdateState(ControllerStateFailed, &ControllerCommandError{
				Command: cmd, Reason: "controller rejected route command",
			})
		}
		return
	}
	if len(f.Payload) < 2 {
		return
	}
	if SendDataStatus(f.Payload[1]) != SendDataOK {
		d.ctrl.UpdateState(ControllerStateFailed, &ControllerCommandError{
			Command: cmd, Reason: "route transmission failed",
		})
		return
	}

	if cmd == ControllerCommandDeleteAllReturnRoutes {
		d.ctrl.UpdateState(ControllerStateCompleted, nil)
		return
	}

	routes := d.ctrl.Routes()
	stage := routes.Advance()
	if stage == RouteStageDeleted {
		// Old routes gone; assign the route to the association target.
		args := d.ctrl.Args()
		cbID := d.nextCallbackID()
		d.queues.SendMessage(BandCommand, Message{
			Frame:              Frame{Type: FrameTypeRequest, FunctionID: FuncZWAssignReturnRoute, Payload: []byte{args.NodeID, args.TargetID, cbID}},
			TargetNodeID:       args.NodeID,
			ExpectedReply:      FuncZWAssignReturnRoute,
			ExpectedCallbackID: cbID,
		})
		d.ctrl.UpdateState(ControllerStateInProgress, nil)
		return
	}
	// One assignment confirmed and no further targets to walk.
	for routes.Advance() != RouteStageEnd {
	}
	d.ctrl.UpdateState(ControllerStateCompleted, nil)
}

func (d *Driver) onSlaveLearnCallback(f Frame) {
	if f.Type == FrameTypeResponse {
		if len(f.Payload) >= 1 && f.Payload[0] == 0 {
			cmd, _, _ := d.ctrl.Active()
			d.ctrl.UpdateState(ControllerStateFailed, &ControllerCommandError{
				Command: cmd, Reason: "controller rejected slave learn mode",
			})
		}
		return
	}
	cmd, _, _ := d.ctrl.Active()
	args := d.ctrl.Args()
	buttonType := NotifyButtonOn
	if cmd == ControllerCommandDeleteButton {
		buttonType = NotifyButtonOff
	}
	d.notify.Post(Notification{Type: buttonType, NodeID: args.NodeID, ButtonID: args.Arg})
	d.ctrl.UpdateState(ControllerStateCompleted, nil)
}

func (d *Driver) handleApplicationCommand(f Frame) {
	if len(f.Payload) < 3 {
		return
	}
	nodeID := f.Payload[0]
	ccLen := int(f.Payload[1])
	if ccLen < 1 || 2+ccLen > len(f.Payload) {
		return
	}
	ccPayload := f.Payload[2 : 2+ccLen]
	commandClass := ccPayload[0]

	prev := d.rf.Snapshot()
	if d.rf.MatchesReply(f, nodeID, commandClass) {
		d.rf.OnReply()
		d.completeIfDone(prev)
	} else if prev.State == StateAwaitingReply {
		d.rf.OnNonMatchingReply()
	}

	if nodeID == broadcastNodeID {
		d.stats.BroadcastReads.Add(1)
	}

	handler, ok := LookupCommandClassHandler(commandClass)
	if !ok {
		return
	}
	changed, err := handler.HandleReport(nodeID, ccPayload[1:], d.cfg.ValueStore)
	if err != nil {
		d.logger.Warn("command-class report decode failed", "node", nodeID, "class", commandClass, "error", err)
		return
	}
	if n := d.nodes.Get(nodeID); n != nil {
		n.stats.ReceivedCount.Add(1)
	}
	for _, id := range changed {
		d.notify.Post(Notification{Type: NotifyValueChanged, NodeID: nodeID, ValueID: id})
	}
}

// Application-update status bytes.
const (
	updateNodeInfoReceived  byte = 0x84
	updateNodeInfoReqFailed byte = 0x81
	updateSUCIDChanged      byte = 0x10
	updateDeleteDone        byte = 0x20
	updateNewIDAssigned     byte = 0x40
)

// ccMarkSupportControl separates "supported" from "controlled" command
// classes inside a node information frame.
const ccMarkSupportControl byte = 0xef

func (d *Driver) handleApplicationUpdate(f Frame) {
	if len(f.Payload) < 2 {
		return
	}
	status := f.Payload[0]
	nodeID := f.Payload[1]

	switch status {
	case updateNodeInfoReceived:
		n, err := d.nodes.GetOrCreate(nodeID)
		if err != nil {
			return
		}
		n.SetAwake(true)
		n.clearNoAck()
		d.applyNodeInfoFrame(n, f.Payload)
		moved := d.queues.FlushWakeUpToCommand(nodeID)
		if moved > 0 {
			d.logger.Debug("flushed wakeup queue", "node", nodeID, "count", moved)
		}
		d.notify.Post(Notification{Type: NotifyNodeEvent, NodeID: nodeID})

	case updateNodeInfoReqFailed:
		d.stats.NonDelivery.Add(1)

	case updateSUCIDChanged:
		d.sucNodeID = nodeID

	case updateDeleteDone:
		d.removeNode(nodeID)

	case updateNewIDAssigned:
		if n, err := d.nodes.GetOrCreate(nodeID); err == nil {
			d.notify.Post(Notification{Type: NotifyNodeAdded, NodeID: nodeID})
			n.setStage(QueryStageProtocolInfo)
			d.enqueueQueryStage(n, QueryStageProtocolInfo)
		}
	}
}

// applyNodeInfoFrame parses the device-class triple and command-class
// list out of a received node information frame.
func (d *Driver) applyNodeInfoFrame(n *Node, payload []byte) {
	if len(payload) < 3 {
		return
	}
	nifLen := int(payload[2])
	if nifLen < 3 || 3+nifLen > len(payload) {
		return
	}
	nif := payload[3 : 3+nifLen]

	n.mu.Lock()
	n.Basic = nif[0]
	n.Generic = nif[1]
	n.Specific = nif[2]
	for _, cc := range nif[3:] {
		if cc == ccMarkSupportControl {
			break
		}
		n.CommandClasses[cc] = true
	}
	n.mu.Unlock()
}

// handleQueryComplete runs advanceQueries for a stage-complete marker
// that reached the front of the Query band.
func (d *Driver) handleQueryComplete(qc queryCompleteMarker) {
	n := d.nodes.Get(qc.NodeID)
	if n == nil {
		return
	}
	advanceQueries(n, qc.Stage, d.queues, d.enqueueQueryStage)

	if n.Stage() != QueryStageComplete {
		return
	}
	d.notify.Post(Notification{Type: NotifyNodeQueriesComplete, NodeID: qc.NodeID})
	if !d.awakeQueried && d.nodes.AwakeNodesQueried() {
		d.awakeQueried = true
		d.notify.Post(Notification{Type: NotifyAwakeNodesQueried})
	}
	if !d.allQueried && d.nodes.AllNodesQueried() {
		d.allQueried = true
		d.notify.Post(Notification{Type: NotifyAllNodesQueried})
	}
	d.persistCache()
}

// enqueueQueryStage posts whatever request a newly-entered query stage
// requires. Stages with no wire request of their own immediately post
// their own completion so the cursor keeps advancing. A wire request for
// a node believed asleep goes to the WakeUp band, where it waits for the
// node's next wakeup report instead of blocking the Query band.
func (d *Driver) enqueueQueryStage(n *Node, stage QueryStage) {
	band := BandQuery
	if !n.Awake() {
		band = BandWakeUp
	}
	switch stage {
	case QueryStageProtocolInfo:
		d.queues.SendMessage(band, Message{
			Frame:         Frame{Type: FrameTypeRequest, FunctionID: FuncZWGetNodeProtocolInfo, Payload: []byte{n.ID}},
			TargetNodeID:  n.ID,
			ExpectedReply: FuncZWGetNodeProtocolInfo,
			queryRequest:  true,
		})
	case QueryStageNodeInfo:
		d.queues.SendMessage(band, Message{
			Frame:         Frame{Type: FrameTypeRequest, FunctionID: FuncZWRequestNodeInfo, Payload: []byte{n.ID}},
			TargetNodeID:  n.ID,
			ExpectedReply: FuncZWRequestNodeInfo,
			CanSleep:      true,
			queryRequest:  true,
		})
	default:
		d.queues.EnqueueQueryComplete(n.ID, stage)
	}
}

func (d *Driver) persistCache() {
	if d.cache == nil {
		return
	}
	var cached CachedConfig
	cached.HomeID = d.homeID
	d.nodes.Range(func(n *Node) {
		n.mu.Lock()
		ccIDs := make([]byte, 0, len(n.CommandClasses))
		for cc := range n.CommandClasses {
			ccIDs = append(ccIDs, cc)
		}
		cached.Nodes = append(cached.Nodes, CachedNode{
			ID: n.ID, Listening: n.Listening, Routing: n.Routing,
			Basic: n.Basic, Generic: n.Generic, Specific: n.Specific,
			ManufacturerID: n.ManufacturerID, ProductType: n.ProductType, ProductID: n.ProductID,
			Name: n.Name, Location: n.Location,
			Version: n.Version, CommandClasses: ccIDs,
		})
		n.mu.Unlock()
	})
	if err := d.cache.Save(cached); err != nil {
		d.logger.Warn("config cache save failed", "error", err)
	}
}

// loadCache pulls the persisted node table for the freshly-learned home
// id, so interrogation of already-known devices can skip the expensive
// wire stages.
func (d *Driver) loadCache() {
	if d.cache == nil || d.homeID == 0 {
		return
	}
	cfg, err := d.cache.Load(d.homeID)
	if errors.Is(err, ErrCacheNotFound) {
		return
	}
	if err != nil {
		d.logger.Warn("config cache load failed", "error", err)
		return
	}
	d.cachedNodes = make(map[byte]CachedNode, len(cfg.Nodes))
	for _, cn := range cfg.Nodes {
		d.cachedNodes[cn.ID] = cn
	}
	d.logger.Info("config cache loaded", "home_id", fmt.Sprintf("0x%08x", d.homeID), "nodes", len(cfg.Nodes))
}

// runInitHandshake runs the one-time startup sequence: GetVersion,
// MemoryGetId, GetControllerCapabilities,
// GetSerialAPICapabilities, optionally GetSUCNodeId, then
// SerialAPIGetInitData, each retried with a 5s/30s backoff until the
// controller responds or the driver is closed.
func (d *Driver) runInitHandshake() {
	// Flush any controller-side partial frame left over from a previous
	// session before the first real request.
	if _, err := d.transport.Write(NAKToken); err != nil {
		d.logger.Warn("init flush write failed", "error", err)
	}

	backoff := NewAdaptivePoll(d.cfg.ReconnectFastInterval, d.cfg.ReconnectSteadyInterval)

	steps := []struct {
		name string
		fn   FunctionID
	}{
		{"GetVersion", FuncZWGetVersion},
		{"MemoryGetId", FuncMemoryGetID},
		{"GetControllerCapabilities", FuncGetControllerCapabilities},
		{"GetSerialAPICapabilities", FuncSerialAPIGetCapabilities},
	}
	if d.cfg.RequestSUCNodeID {
		steps = append(steps, struct {
			name string
			fn   FunctionID
		}{"GetSUCNodeId", FuncZWGetSUCNodeID})
	}
	steps = append(steps, struct {
		name string
		fn   FunctionID
	}{"SerialAPIGetInitData", FuncSerialAPIGetInitData})

	for _, step := range steps {
		for {
			select {
			case <-d.driverCtx.Done():
				return
			default:
			}

			if d.sendAndAwait(step.fn) {
				backoff.Reset()
				break
			}
			d.logger.Warn("init handshake step failed, retrying", "step", step.name)
			if !d.sleepInterruptible(backoff.Interval()) {
				return
			}
		}
	}

	d.notify.Post(Notification{Type: NotifyDriverReady})
}

// sendAndAwait writes a zero-payload request for fn and blocks the main
// loop (this runs before mainLoop's select starts, so that's fine: there
// is no send queue traffic yet) until a matching ACK+reply arrives or
// the overall timeout elapses.
func (d *Driver) sendAndAwait(fn FunctionID) bool {
	msg := Message{
		Frame:         Frame{Type: FrameTypeRequest, FunctionID: fn},
		ExpectedReply: fn,
	}
	d.writeMessage(msg, BandCommand)

	deadline := time.After(d.cfg.OverallTimeout)
	for {
		select {
		case <-d.driverCtx.Done():
			return false
		case <-deadline:
			d.rf.Tick(time.Now().Add(d.cfg.OverallTimeout))
			return false
		case fe := <-d.frames:
			if fe.err != nil {
				if isRecoverableFrameError(fe.err) {
					d.nakInbound()
					continue
				}
				return false
			}
			r := fe.result
			if !r.IsFrame {
				if r.Control == ACK {
					d.rf.OnAck()
				}
				continue
			}
			if _, err := d.transport.Write(ACKToken); err != nil {
				d.logger.Warn("failed to ack inbound frame", "error", err)
			}
			if d.rf.MatchesReply(r.Frame, 0, 0) {
				d.applyInitReply(fn, r.Frame)
				d.rf.OnReply()
				d.rf.Finish()
				return true
			}
		}
	}
}

// applyInitReply folds one init-handshake response into driver state.
func (d *Driver) applyInitReply(fn FunctionID, f Frame) {
	switch fn {
	case FuncZWGetVersion:
		// Null-terminated library version string followed by the
		// library type byte.
		if i := bytes.IndexByte(f.Payload, 0); i >= 0 {
			d.libraryVersion = string(f.Payload[:i])
		}
		if len(f.Payload) >= 1 {
			d.libraryType = f.Payload[len(f.Payload)-1]
		}

	case FuncMemoryGetID:
		if len(f.Payload) >= 5 {
			d.homeID = uint32FromBytes(f.Payload[0:4])
			d.ctrlNodeID = f.Payload[4]
			d.loadCache()
		}

	case FuncGetControllerCapabilities:
		if len(f.Payload) >= 1 {
			d.controllerCaps = f.Payload[0]
		}

	case FuncSerialAPIGetCapabilities:
		if len(f.Payload) >= 40 {
			d.serialAPIVersion = [2]byte{f.Payload[0], f.Payload[1]}
			d.manufacturerID = uint16(f.Payload[2])<<8 | uint16(f.Payload[3])
			d.productType = uint16(f.Payload[4])<<8 | uint16(f.Payload[5])
			d.productID = uint16(f.Payload[6])<<8 | uint16(f.Payload[7])
			copy(d.apiMask[:], f.Payload[8:40])
		}

	case FuncZWGetSUCNodeID:
		if len(f.Payload) >= 1 {
			d.sucNodeID = f.Payload[0]
		}

	case FuncSerialAPIGetInitData:
		d.applyInitData(f.Payload)
	}
}

// applyInitData parses the 29-byte node presence bitmap
// SerialAPIGetInitData returns (payload layout: version, capabilities,
// bitmap length, bitmap...) and seeds the node table: nodes present in
// the loaded config cache are marked known-needs-refresh, everything
// else gets a full interrogation from ProtocolInfo.
func (d *Driver) applyInitData(payload []byte) {
	if len(payload) < 3 {
		return
	}
	d.initCaps = payload[1]
	bitmapLen := int(payload[2])
	if 3+bitmapLen > len(payload) {
		return
	}
	bitmap := payload[3 : 3+bitmapLen]
	for id := 1; id <= MaxNodeID; id++ {
		byteIdx := (id - 1) / 8
		bitIdx := uint((id - 1) % 8)
		if byteIdx >= len(bitmap) {
			break
		}
		if bitmap[byteIdx]&(1<<bitIdx) == 0 {
			continue
		}
		n, err := d.nodes.GetOrCreate(byte(id))
		if err != nil {
			continue
		}
		d.notify.Post(Notification{Type: NotifyNodeAdded, NodeID: n.ID})

		if cached, ok := d.cachedNodes[n.ID]; ok {
			// Known device: restore its interrogation results and skip
			// straight to the refresh-only stages.
			n.seedFromCache(cached)
			n.setStage(QueryStageNodeInfo)
			d.queues.EnqueueQueryComplete(n.ID, QueryStageNodeInfo)
			continue
		}
		n.setStage(QueryStageProtocolInfo)
		d.enqueueQueryStage(n, QueryStageProtocolInfo)
	}
}
