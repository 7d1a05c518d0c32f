//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"errors"
	"syscall/js"

	"github.com/hack-pad/hackpadfs/indexeddb"

	"github.com/kittclouds/readerkit/internal/logger"
	"github.com/kittclouds/readerkit/internal/orchestrator"
	"github.com/kittclouds/readerkit/internal/store"
	"github.com/kittclouds/readerkit/internal/syncq"
)

// Version info
const Version = "0.1.0"

// Global state, set by init.
var orch *orchestrator.Orchestrator

var errNotInitialized = errors.New("readerkit not initialized")

func main() {
	println("[ReaderKit] WASM Ready v" + Version)

	js.Global().Set("ReaderKit", js.ValueOf(map[string]interface{}{
		"version": js.FuncOf(getVersion),
		"init":    js.FuncOf(initialize),
		"status":  js.FuncOf(status),

		"saveDocument":   js.FuncOf(saveDocument),
		"getDocuments":   js.FuncOf(getDocuments),
		"getDocument":    js.FuncOf(getDocument),
		"deleteDocument": js.FuncOf(deleteDocument),

		"saveChunk":    js.FuncOf(saveChunk),
		"searchChunks": js.FuncOf(searchChunks),

		"saveNode": js.FuncOf(saveNode),
		"saveEdge": js.FuncOf(saveEdge),
		"getGraph": js.FuncOf(getGraph),

		"getGraphStats":   js.FuncOf(getGraphStats),
		"getNeighborhood": js.FuncOf(getNeighborhood),

		"saveAnnotation": js.FuncOf(saveAnnotation),
		"getAnnotations": js.FuncOf(getAnnotations),

		"getOrCreateConversation": js.FuncOf(getOrCreateConversation),
		"saveMessage":             js.FuncOf(saveMessage),
		"getMessages":             js.FuncOf(getMessages),

		"saveVocabulary":   js.FuncOf(saveVocabulary),
		"getVocabulary":    js.FuncOf(getVocabulary),
		"deleteVocabulary": js.FuncOf(deleteVocabulary),

		"saveSettings": js.FuncOf(saveSettings),
		"getSettings":  js.FuncOf(getSettings),
	}))

	select {}
}

func getVersion(this js.Value, args []js.Value) interface{} {
	return Version
}

// initialize opens the IndexedDB-backed store. Args: [url, apiKey], both
// optional. No remote dialer is linked into this build, so the returned
// "connected" is always false and writes stay queued for a native client.
func initialize(this js.Value, args []js.Value) interface{} {
	return promise(func(ctx context.Context) (interface{}, error) {
		if orch != nil {
			orch.Close()
		}
		fs, err := indexeddb.NewFS(ctx, "readerkit", indexeddb.Options{})
		if err != nil {
			return nil, errors.New("failed to create idb fs: " + err.Error())
		}
		log, err := logger.New("prod")
		if err != nil {
			log = logger.Nop()
		}

		kv := store.NewFSKV(fs)
		local := store.NewLocal(kv, store.WithIndexFS(fs))
		queue := syncq.New(kv, syncq.WithLogger(log))
		orch = orchestrator.New(local, queue, orchestrator.WithLogger(log))

		connected := orch.Init(ctx, stringArg(args, 0), stringArg(args, 1))
		return map[string]interface{}{"connected": connected, "userId": orch.UserID()}, nil
	})
}

func status(this js.Value, args []js.Value) interface{} {
	return call(func(ctx context.Context, o *orchestrator.Orchestrator) (interface{}, error) {
		return o.Status(), nil
	})
}

// =============================================================================
// Documents & chunks
// =============================================================================

// saveDocument: [documentJSON string] (pages included)
func saveDocument(this js.Value, args []js.Value) interface{} {
	var doc store.Document
	return callWith(args, &doc, func(ctx context.Context, o *orchestrator.Orchestrator) (interface{}, error) {
		return o.SaveDocument(ctx, &doc)
	})
}

func getDocuments(this js.Value, args []js.Value) interface{} {
	return call(func(ctx context.Context, o *orchestrator.Orchestrator) (interface{}, error) {
		return o.GetDocuments(ctx), nil
	})
}

// getDocument: [id string]
func getDocument(this js.Value, args []js.Value) interface{} {
	id := stringArg(args, 0)
	return call(func(ctx context.Context, o *orchestrator.Orchestrator) (interface{}, error) {
		return o.GetDocument(ctx, id), nil
	})
}

// deleteDocument: [id string]
func deleteDocument(this js.Value, args []js.Value) interface{} {
	id := stringArg(args, 0)
	return call(func(ctx context.Context, o *orchestrator.Orchestrator) (interface{}, error) {
		return o.DeleteDocument(ctx, id)
	})
}

// saveChunk: [chunkJSON string]
func saveChunk(this js.Value, args []js.Value) interface{} {
	var chunk store.Chunk
	return callWith(args, &chunk, func(ctx context.Context, o *orchestrator.Orchestrator) (interface{}, error) {
		return o.SaveChunk(ctx, &chunk)
	})
}

// searchChunks: [vectorJSON string, documentId string, k int]
// Returns: JSON array of ranked chunks
func searchChunks(this js.Value, args []js.Value) interface{} {
	var query []float32
	if err := json.Unmarshal([]byte(stringArg(args, 0)), &query); err != nil {
		return errorResult("invalid vector json: " + err.Error())
	}
	documentID := stringArg(args, 1)
	k := 0
	if len(args) > 2 {
		k = args[2].Int()
	}
	return call(func(ctx context.Context, o *orchestrator.Orchestrator) (interface{}, error) {
		return o.SearchChunks(ctx, query, documentID, k), nil
	})
}

// =============================================================================
// Graph
// =============================================================================

func saveNode(this js.Value, args []js.Value) interface{} {
	var node store.Node
	return callWith(args, &node, func(ctx context.Context, o *orchestrator.Orchestrator) (interface{}, error) {
		return o.SaveNode(ctx, &node)
	})
}

func saveEdge(this js.Value, args []js.Value) interface{} {
	var edge store.Edge
	return callWith(args, &edge, func(ctx context.Context, o *orchestrator.Orchestrator) (interface{}, error) {
		return o.SaveEdge(ctx, &edge)
	})
}

// getGraph: [documentId string]
func getGraph(this js.Value, args []js.Value) interface{} {
	documentID := stringArg(args, 0)
	return call(func(ctx context.Context, o *orchestrator.Orchestrator) (interface{}, error) {
		return o.GetGraph(ctx, documentID), nil
	})
}

// getGraphStats: [documentId string, top int]
func getGraphStats(this js.Value, args []js.Value) interface{} {
	documentID := stringArg(args, 0)
	top := 0
	if len(args) > 1 {
		top = args[1].Int()
	}
	return call(func(ctx context.Context, o *orchestrator.Orchestrator) (interface{}, error) {
		return o.GraphStats(ctx, documentID, top), nil
	})
}

// getNeighborhood: [documentId string, nodeId string]
// Returns: null when the map never mentions the node
func getNeighborhood(this js.Value, args []js.Value) interface{} {
	documentID, nodeID := stringArg(args, 0), stringArg(args, 1)
	return call(func(ctx context.Context, o *orchestrator.Orchestrator) (interface{}, error) {
		return o.Neighborhood(ctx, documentID, nodeID), nil
	})
}

// =============================================================================
// Annotations
// =============================================================================

func saveAnnotation(this js.Value, args []js.Value) interface{} {
	var a store.Annotation
	return callWith(args, &a, func(ctx context.Context, o *orchestrator.Orchestrator) (interface{}, error) {
		return o.SaveAnnotation(ctx, &a)
	})
}

// getAnnotations: [documentId string]
func getAnnotations(this js.Value, args []js.Value) interface{} {
	documentID := stringArg(args, 0)
	return call(func(ctx context.Context, o *orchestrator.Orchestrator) (interface{}, error) {
		return o.GetAnnotations(ctx, documentID), nil
	})
}

// =============================================================================
// Conversations
// =============================================================================

// getOrCreateConversation: [documentId string]
func getOrCreateConversation(this js.Value, args []js.Value) interface{} {
	documentID := stringArg(args, 0)
	return call(func(ctx context.Context, o *orchestrator.Orchestrator) (interface{}, error) {
		return o.GetOrCreateConversation(ctx, documentID)
	})
}

// saveMessage: [conversationId string, messageJSON string]
func saveMessage(this js.Value, args []js.Value) interface{} {
	conversationID := stringArg(args, 0)
	var msg store.Message
	if err := json.Unmarshal([]byte(stringArg(args, 1)), &msg); err != nil {
		return errorResult("invalid message json: " + err.Error())
	}
	return call(func(ctx context.Context, o *orchestrator.Orchestrator) (interface{}, error) {
		return o.SaveMessage(ctx, conversationID, &msg)
	})
}

// getMessages: [conversationId string]
func getMessages(this js.Value, args []js.Value) interface{} {
	conversationID := stringArg(args, 0)
	return call(func(ctx context.Context, o *orchestrator.Orchestrator) (interface{}, error) {
		return o.GetMessages(ctx, conversationID), nil
	})
}

// =============================================================================
// Vocabulary & settings
// =============================================================================

func saveVocabulary(this js.Value, args []js.Value) interface{} {
	var v store.VocabularyEntry
	return callWith(args, &v, func(ctx context.Context, o *orchestrator.Orchestrator) (interface{}, error) {
		return o.SaveVocabulary(ctx, &v)
	})
}

// getVocabulary: [documentId string] - all entries when omitted
func getVocabulary(this js.Value, args []js.Value) interface{} {
	documentID := stringArg(args, 0)
	return call(func(ctx context.Context, o *orchestrator.Orchestrator) (interface{}, error) {
		if documentID == "" {
			return o.GetAllVocabulary(ctx), nil
		}
		return o.GetVocabulary(ctx, documentID), nil
	})
}

// deleteVocabulary: [id string]
func deleteVocabulary(this js.Value, args []js.Value) interface{} {
	id := stringArg(args, 0)
	return call(func(ctx context.Context, o *orchestrator.Orchestrator) (interface{}, error) {
		return o.DeleteVocabulary(ctx, id)
	})
}

func saveSettings(this js.Value, args []js.Value) interface{} {
	var settings store.Settings
	return callWith(args, &settings, func(ctx context.Context, o *orchestrator.Orchestrator) (interface{}, error) {
		return o.SaveSettings(ctx, settings)
	})
}

func getSettings(this js.Value, args []js.Value) interface{} {
	return call(func(ctx context.Context, o *orchestrator.Orchestrator) (interface{}, error) {
		return o.GetSettings(ctx), nil
	})
}

// =============================================================================
// Helpers
// =============================================================================

// call runs fn against the initialized orchestrator.
func call(fn func(context.Context, *orchestrator.Orchestrator) (interface{}, error)) interface{} {
	if orch == nil {
		return errorResult(errNotInitialized.Error())
	}
	o := orch
	return promise(func(ctx context.Context) (interface{}, error) {
		return fn(ctx, o)
	})
}

// callWith decodes args[0] into dst before running fn.
func callWith(args []js.Value, dst interface{}, fn func(context.Context, *orchestrator.Orchestrator) (interface{}, error)) interface{} {
	if err := json.Unmarshal([]byte(stringArg(args, 0)), dst); err != nil {
		return errorResult("invalid json: " + err.Error())
	}
	return call(fn)
}

// promise runs fn off the event loop, since IndexedDB calls block on it,
// and resolves with the JSON-encoded result or an error object.
func promise(fn func(context.Context) (interface{}, error)) interface{} {
	var executor js.Func
	executor = js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		resolve := args[0]
		go func() {
			defer executor.Release()
			v, err := fn(context.Background())
			if err != nil {
				resolve.Invoke(errorResult(err.Error()))
				return
			}
			resolve.Invoke(jsonResult(v))
		}()
		return nil
	})
	return js.Global().Get("Promise").New(executor)
}

func stringArg(args []js.Value, i int) string {
	if len(args) <= i || args[i].IsUndefined() || args[i].IsNull() {
		return ""
	}
	return args[i].String()
}

func jsonResult(v interface{}) interface{} {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return errorResult("failed to encode result: " + err.Error())
	}
	return string(jsonBytes)
}

// Helper: Create error result
func errorResult(msg string) interface{} {
	result := map[string]interface{}{
		"error": msg,
	}
	jsonBytes, _ := json.Marshal(result)
	return string(jsonBytes)
}
