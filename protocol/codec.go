package protocol

// Server message tags, in sum-type declaration order.
const (
	tagInitialConnection byte = iota
	tagInitialSubscription
	tagTransactionUpdate
	tagTransactionUpdateLight
	tagSubscribeApplied
	tagUnsubscribeApplied
	tagSubscriptionError
	tagReducerResult
	tagOneOffQueryResponse
)

// Client message tags, in sum-type declaration order.
const (
	tagSubscribe byte = iota
	tagUnsubscribe
	tagCallReducer
	tagOneOffQuery
)

// DecodeServerMessage parses a decompressed server frame into its typed
// form. Callers obtain the decompressed bytes from DecodeFrame first.
func DecodeServerMessage(data []byte) (ServerMessage, error) {
	r := newReader(data)
	tag, err := r.u8()
	if err != nil {
		return ServerMessage{}, err
	}

	switch tag {
	case tagInitialConnection:
		id, err := r.bytes16()
		if err != nil {
			return ServerMessage{}, err
		}
		return ServerMessage{InitialConnection: &InitialConnection{ConnectionID: id}}, nil

	case tagInitialSubscription:
		upd, err := readDatabaseUpdate(r)
		if err != nil {
			return ServerMessage{}, err
		}
		reqID, err := r.u32()
		if err != nil {
			return ServerMessage{}, err
		}
		return ServerMessage{InitialSubscription: &InitialSubscription{Update: upd, RequestID: reqID}}, nil

	case tagTransactionUpdate:
		msg, err := readTransactionUpdate(r)
		if err != nil {
			return ServerMessage{}, err
		}
		return ServerMessage{TransactionUpdate: msg}, nil

	case tagTransactionUpdateLight:
		querySets, err := readQuerySets(r)
		if err != nil {
			return ServerMessage{}, err
		}
		return ServerMessage{TransactionUpdateLight: &TransactionUpdateLight{QuerySets: querySets}}, nil

	case tagSubscribeApplied:
		queryID, err := r.u32()
		if err != nil {
			return ServerMessage{}, err
		}
		reqID, err := r.u32()
		if err != nil {
			return ServerMessage{}, err
		}
		tableID, err := r.u32()
		if err != nil {
			return ServerMessage{}, err
		}
		tableName, err := r.str()
		if err != nil {
			return ServerMessage{}, err
		}
		rows, err := r.rowList()
		if err != nil {
			return ServerMessage{}, err
		}
		return ServerMessage{SubscribeApplied: &SubscribeApplied{
			QueryID: queryID, RequestID: reqID, TableID: tableID, TableName: tableName, Rows: rows,
		}}, nil

	case tagUnsubscribeApplied:
		queryID, err := r.u32()
		if err != nil {
			return ServerMessage{}, err
		}
		reqID, err := r.u32()
		if err != nil {
			return ServerMessage{}, err
		}
		return ServerMessage{UnsubscribeApplied: &UnsubscribeApplied{QueryID: queryID, RequestID: reqID}}, nil

	case tagSubscriptionError:
		hasQueryID, err := r.bool()
		if err != nil {
			return ServerMessage{}, err
		}
		var queryID *uint32
		if hasQueryID {
			v, err := r.u32()
			if err != nil {
				return ServerMessage{}, err
			}
			queryID = &v
		}
		reqID, err := r.u32()
		if err != nil {
			return ServerMessage{}, err
		}
		errMsg, err := r.str()
		if err != nil {
			return ServerMessage{}, err
		}
		return ServerMessage{SubscriptionError: &SubscriptionError{QueryID: queryID, RequestID: reqID, Error: errMsg}}, nil

	case tagReducerResult:
		msg, err := readReducerResult(r)
		if err != nil {
			return ServerMessage{}, err
		}
		return ServerMessage{ReducerResult: msg}, nil

	case tagOneOffQueryResponse:
		msg, err := readOneOffQueryResponse(r)
		if err != nil {
			return ServerMessage{}, err
		}
		return ServerMessage{OneOffQueryResponse: msg}, nil

	default:
		return ServerMessage{}, ErrUnknownMessageTag
	}
}

func readDatabaseUpdate(r *reader) (DatabaseUpdate, error) {
	count, err := r.u32()
	if err != nil {
		return DatabaseUpdate{}, err
	}
	tables := make([]TableUpdate, count)
	for i := range tables {
		tableID, err := r.u32()
		if err != nil {
			return DatabaseUpdate{}, err
		}
		tableName, err := r.str()
		if err != nil {
			return DatabaseUpdate{}, err
		}
		inserts, err := r.rowList()
		if err != nil {
			return DatabaseUpdate{}, err
		}
		deletes, err := r.rowList()
		if err != nil {
			return DatabaseUpdate{}, err
		}
		tables[i] = TableUpdate{TableID: tableID, TableName: tableName, Inserts: inserts, Deletes: deletes}
	}
	return DatabaseUpdate{Tables: tables}, nil
}

func writeDatabaseUpdate(w *writer, upd DatabaseUpdate) {
	w.u32(uint32(len(upd.Tables)))
	for _, t := range upd.Tables {
		w.u32(t.TableID)
		w.str(t.TableName)
		w.rowList(t.Inserts)
		w.rowList(t.Deletes)
	}
}

func readQuerySets(r *reader) ([]QueryUpdate, error) {
	count, err := r.u32()
	if err != nil {
		return nil, err
	}
	querySets := make([]QueryUpdate, count)
	for i := range querySets {
		queryID, err := r.u32()
		if err != nil {
			return nil, err
		}
		upd, err := readDatabaseUpdate(r)
		if err != nil {
			return nil, err
		}
		querySets[i] = QueryUpdate{QueryID: queryID, Update: upd}
	}
	return querySets, nil
}

func writeQuerySets(w *writer, querySets []QueryUpdate) {
	w.u32(uint32(len(querySets)))
	for _, qs := range querySets {
		w.u32(qs.QueryID)
		writeDatabaseUpdate(w, qs.Update)
	}
}

func readTransactionUpdate(r *reader) (*TransactionUpdate, error) {
	status, err := r.u8()
	if err != nil {
		return nil, err
	}
	failureMsg, err := r.str()
	if err != nil {
		return nil, err
	}
	reducerName, err := r.str()
	if err != nil {
		return nil, err
	}
	reducerReqID, err := r.u64()
	if err != nil {
		return nil, err
	}
	timestamp, err := r.i64()
	if err != nil {
		return nil, err
	}
	energy, err := r.u64()
	if err != nil {
		return nil, err
	}
	hostMicros, err := r.u64()
	if err != nil {
		return nil, err
	}
	hasCaller, err := r.bool()
	if err != nil {
		return nil, err
	}
	var caller *[16]byte
	if hasCaller {
		id, err := r.bytes16()
		if err != nil {
			return nil, err
		}
		caller = &id
	}

	querySets, err := readQuerySets(r)
	if err != nil {
		return nil, err
	}

	return &TransactionUpdate{
		Status:              TransactionUpdateStatus(status),
		FailureMessage:      failureMsg,
		ReducerName:         reducerName,
		ReducerRequestID:    reducerReqID,
		Timestamp:           timestamp,
		EnergyUsed:          energy,
		HostExecutionMicros: hostMicros,
		CallerConnectionID:  caller,
		QuerySets:           querySets,
	}, nil
}

func writeTransactionUpdate(w *writer, msg *TransactionUpdate) {
	w.u8(byte(msg.Status))
	w.str(msg.FailureMessage)
	w.str(msg.ReducerName)
	w.u64(msg.ReducerRequestID)
	w.i64(msg.Timestamp)
	w.u64(msg.EnergyUsed)
	w.u64(msg.HostExecutionMicros)
	w.boolean(msg.CallerConnectionID != nil)
	if msg.CallerConnectionID != nil {
		w.bytes16(*msg.CallerConnectionID)
	}
	writeQuerySets(w, msg.QuerySets)
}

func readReducerResult(r *reader) (*ReducerResult, error) {
	reqID, err := r.u64()
	if err != nil {
		return nil, err
	}
	timestamp, err := r.i64()
	if err != nil {
		return nil, err
	}
	status, err := r.u8()
	if err != nil {
		return nil, err
	}

	result := &ReducerResult{RequestID: reqID, Timestamp: timestamp, Status: ReducerResultStatus(status)}

	switch result.Status {
	case ReducerOk:
		retValue, err := r.blob()
		if err != nil {
			return nil, err
		}
		querySets, err := readQuerySets(r)
		if err != nil {
			return nil, err
		}
		result.RetValue = retValue
		result.QuerySets = querySets

	case ReducerErr:
		payload, err := r.str()
		if err != nil {
			return nil, err
		}
		result.ErrPayload = payload

	case ReducerInternalError:
		msg, err := r.str()
		if err != nil {
			return nil, err
		}
		result.InternalMessage = msg

	default:
		return nil, ErrUnknownMessageTag
	}

	return result, nil
}

func writeReducerResult(w *writer, msg *ReducerResult) {
	w.u64(msg.RequestID)
	w.i64(msg.Timestamp)
	w.u8(byte(msg.Status))

	switch msg.Status {
	case ReducerOk:
		w.blob(msg.RetValue)
		writeQuerySets(w, msg.QuerySets)
	case ReducerErr:
		w.str(msg.ErrPayload)
	case ReducerInternalError:
		w.str(msg.InternalMessage)
	}
}

func readOneOffQueryResponse(r *reader) (*OneOffQueryResponse, error) {
	messageID, err := r.blob()
	if err != nil {
		return nil, err
	}
	errMsg, err := r.str()
	if err != nil {
		return nil, err
	}
	count, err := r.u32()
	if err != nil {
		return nil, err
	}
	tables := make([]TableUpdate, count)
	for i := range tables {
		tableID, err := r.u32()
		if err != nil {
			return nil, err
		}
		tableName, err := r.str()
		if err != nil {
			return nil, err
		}
		rows, err := r.rowList()
		if err != nil {
			return nil, err
		}
		tables[i] = TableUpdate{TableID: tableID, TableName: tableName, Inserts: rows}
	}
	return &OneOffQueryResponse{MessageID: messageID, Error: errMsg, Tables: tables}, nil
}

func writeOneOffQueryResponse(w *writer, msg *OneOffQueryResponse) {
	w.blob(msg.MessageID)
	w.str(msg.Error)
	w.u32(uint32(len(msg.Tables)))
	for _, t := range msg.Tables {
		w.u32(t.TableID)
		w.str(t.TableName)
		w.rowList(t.Inserts)
	}
}

// EncodeServerMessage is provided for symmetry and for tests that need to
// build synthetic server frames; the production client never sends one.
func EncodeServerMessage(msg ServerMessage) []byte {
	w := &writer{}
	switch {
	case msg.InitialConnection != nil:
		w.u8(tagInitialConnection)
		w.bytes16(msg.InitialConnection.ConnectionID)

	case msg.InitialSubscription != nil:
		w.u8(tagInitialSubscription)
		writeDatabaseUpdate(w, msg.InitialSubscription.Update)
		w.u32(msg.InitialSubscription.RequestID)

	case msg.TransactionUpdate != nil:
		w.u8(tagTransactionUpdate)
		writeTransactionUpdate(w, msg.TransactionUpdate)

	case msg.TransactionUpdateLight != nil:
		w.u8(tagTransactionUpdateLight)
		writeQuerySets(w, msg.TransactionUpdateLight.QuerySets)

	case msg.SubscribeApplied != nil:
		sa := msg.SubscribeApplied
		w.u8(tagSubscribeApplied)
		w.u32(sa.QueryID)
		w.u32(sa.RequestID)
		w.u32(sa.TableID)
		w.str(sa.TableName)
		w.rowList(sa.Rows)

	case msg.UnsubscribeApplied != nil:
		w.u8(tagUnsubscribeApplied)
		w.u32(msg.UnsubscribeApplied.QueryID)
		w.u32(msg.UnsubscribeApplied.RequestID)

	case msg.SubscriptionError != nil:
		se := msg.SubscriptionError
		w.u8(tagSubscriptionError)
		w.boolean(se.QueryID != nil)
		if se.QueryID != nil {
			w.u32(*se.QueryID)
		}
		w.u32(se.RequestID)
		w.str(se.Error)

	case msg.ReducerResult != nil:
		w.u8(tagReducerResult)
		writeReducerResult(w, msg.ReducerResult)

	case msg.OneOffQueryResponse != nil:
		w.u8(tagOneOffQueryResponse)
		writeOneOffQueryResponse(w, msg.OneOffQueryResponse)
	}
	return w.buf
}

// DecodeClientMessage parses a client frame; used by tests and by any
// server-side fixture, since the client itself only ever encodes these.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	r := newReader(data)
	tag, err := r.u8()
	if err != nil {
		return ClientMessage{}, err
	}

	switch tag {
	case tagSubscribe:
		query, err := r.str()
		if err != nil {
			return ClientMessage{}, err
		}
		reqID, err := r.u32()
		if err != nil {
			return ClientMessage{}, err
		}
		queryID, err := r.u32()
		if err != nil {
			return ClientMessage{}, err
		}
		return ClientMessage{Subscribe: &SubscribeSingle{QueryString: query, RequestID: reqID, QueryID: queryID}}, nil

	case tagUnsubscribe:
		queryID, err := r.u32()
		if err != nil {
			return ClientMessage{}, err
		}
		reqID, err := r.u32()
		if err != nil {
			return ClientMessage{}, err
		}
		return ClientMessage{Unsubscribe: &UnsubscribeSingle{QueryID: queryID, RequestID: reqID}}, nil

	case tagCallReducer:
		name, err := r.str()
		if err != nil {
			return ClientMessage{}, err
		}
		args, err := r.blob()
		if err != nil {
			return ClientMessage{}, err
		}
		reqID, err := r.u64()
		if err != nil {
			return ClientMessage{}, err
		}
		flags, err := r.u8()
		if err != nil {
			return ClientMessage{}, err
		}
		return ClientMessage{CallReducer: &CallReducer{ReducerName: name, Args: args, RequestID: reqID, Flags: flags}}, nil

	case tagOneOffQuery:
		messageID, err := r.blob()
		if err != nil {
			return ClientMessage{}, err
		}
		query, err := r.str()
		if err != nil {
			return ClientMessage{}, err
		}
		return ClientMessage{OneOffQuery: &OneOffQuery{MessageID: messageID, QueryString: query}}, nil

	default:
		return ClientMessage{}, ErrUnknownMessageTag
	}
}

// EncodeClientMessage serializes a ClientMessage for transmission.
func EncodeClientMessage(msg ClientMessage) []byte {
	w := &writer{}
	switch {
	case msg.Subscribe != nil:
		w.u8(tagSubscribe)
		w.str(msg.Subscribe.QueryString)
		w.u32(msg.Subscribe.RequestID)
		w.u32(msg.Subscribe.QueryID)

	case msg.Unsubscribe != nil:
		w.u8(tagUnsubscribe)
		w.u32(msg.Unsubscribe.QueryID)
		w.u32(msg.Unsubscribe.RequestID)

	case msg.CallReducer != nil:
		cr := msg.CallReducer
		w.u8(tagCallReducer)
		w.str(cr.ReducerName)
		w.blob(cr.Args)
		w.u64(cr.RequestID)
		w.u8(cr.Flags)

	case msg.OneOffQuery != nil:
		oq := msg.OneOffQuery
		w.u8(tagOneOffQuery)
		w.blob(oq.MessageID)
		w.str(oq.QueryString)
	}
	return w.buf
}
