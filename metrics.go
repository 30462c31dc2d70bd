// Copyright (C) 2022 Michael J. Fromberger. All Rights Reserved.

package kpal

import "expvar"

// coreMetrics record activity counters for a Core.
type coreMetrics struct {
	attrGet        expvar.Int // number of attribute reads
	attrSet        expvar.Int // number of attribute writes
	attrErr        expvar.Int // number of attribute accesses reporting an error
	produce        expvar.Int // number of produce requests
	produceErr     expvar.Int // number of produce requests reporting an error
	eventRecv      expvar.Int // number of events received by the worker
	eventHandled   expvar.Int // number of events delivered to a handler
	eventFailed    expvar.Int // number of events whose handler failed
	eventDropped   expvar.Int // number of events with no handler
	periphActive   expvar.Int // gauge of registered peripherals
	buildFailed    expvar.Int
	buildSucceeded expvar.Int

	emap *expvar.Map
}

func newCoreMetrics() *coreMetrics {
	cm := &coreMetrics{emap: new(expvar.Map)}
	cm.emap.Set("attribute_gets", &cm.attrGet)
	cm.emap.Set("attribute_sets", &cm.attrSet)
	cm.emap.Set("attribute_errors", &cm.attrErr)
	cm.emap.Set("produce_calls", &cm.produce)
	cm.emap.Set("produce_failed", &cm.produceErr)
	cm.emap.Set("events_received", &cm.eventRecv)
	cm.emap.Set("events_handled", &cm.eventHandled)
	cm.emap.Set("events_failed", &cm.eventFailed)
	cm.emap.Set("events_dropped", &cm.eventDropped)
	cm.emap.Set("peripherals_active", &cm.periphActive)
	cm.emap.Set("builds_failed", &cm.buildFailed)
	cm.emap.Set("builds_succeeded", &cm.buildSucceeded)
	return cm
}
