// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package ingestion

import (
	"fmt"
	"testing"
)

func testDef(name string) Definition {
	return Definition{Name: name, Signature: Signature{Args: []string{}, Defaults: []string{}}, Decorators: []string{}}
}

func resolverFixture() []Record {
	return []Record{
		{
			File: "app/utils.py",
			Type: FileTypePython,
			Functions: []Definition{
				testDef("helper"),
				testDef("main"),
			},
			Calls: []Call{
				{CallerFunction: "main", CalledFunction: "helper"},
			},
		},
		{
			File: "app/other.py",
			Type: FileTypePython,
			Functions: []Definition{
				testDef("helper"),
			},
			Classes: []Class{
				{Name: "Service", Methods: []Definition{testDef("run"), testDef("stop")}},
			},
			Calls: []Call{
				{CallerFunction: "run", CallerClass: "Service", CalledFunction: "stop"},
				{CallerFunction: "run", CallerClass: "Service", CalledFunction: "helper"},
				{CallerFunction: "run", CallerClass: "Service", CalledFunction: "missing"},
			},
		},
		{
			File:    "docs/guide.md",
			Type:    FileTypeMarkdown,
			Content: "# Guide",
		},
	}
}

func TestCrossResolver_Index(t *testing.T) {
	resolver := NewCrossResolver()
	resolver.Index(resolverFixture())

	functions, methods := resolver.Stats()
	if functions != 2 {
		t.Errorf("expected 2 function names indexed, got %d", functions)
	}
	if methods != 2 {
		t.Errorf("expected 2 methods indexed, got %d", methods)
	}

	files := resolver.FunctionFiles("helper")
	if len(files) != 2 || files[0] != "app/utils.py" || files[1] != "app/other.py" {
		t.Errorf("expected helper in both files in record order, got %v", files)
	}
	if got := resolver.MethodFiles("Service", "stop"); len(got) != 1 || got[0] != "app/other.py" {
		t.Errorf("expected Service.stop in app/other.py, got %v", got)
	}
}

func TestCrossResolver_Resolve_SelfCall(t *testing.T) {
	records := resolverFixture()
	resolver := NewCrossResolver()
	resolver.Index(records)
	stats := resolver.Resolve(records)

	call := records[0].Calls[0]
	if call.Resolution == nil {
		t.Fatal("expected call to be annotated")
	}
	if len(call.Resolution.FunctionFiles) != 2 {
		t.Errorf("expected both helper files as candidates, got %v", call.Resolution.FunctionFiles)
	}
	if !call.Resolution.SelfCallFunction {
		t.Error("expected self_call_function for helper defined in the caller's file")
	}
	if call.Resolution.SelfCallMethod {
		t.Error("free-function caller should never be a method self call")
	}
	if len(call.Resolution.MethodFiles) != 0 {
		t.Errorf("expected no method candidates for a free-function caller, got %v", call.Resolution.MethodFiles)
	}

	if stats.CallsAnnotated != 4 {
		t.Errorf("expected 4 calls annotated, got %d", stats.CallsAnnotated)
	}
	if stats.SelfCalls != 3 {
		t.Errorf("expected 3 self calls, got %d", stats.SelfCalls)
	}
}

func TestCrossResolver_Resolve_Methods(t *testing.T) {
	records := resolverFixture()
	resolver := NewCrossResolver()
	resolver.Index(records)
	resolver.Resolve(records)

	other := records[1]

	stop := other.Calls[0].Resolution
	if len(stop.MethodFiles) != 1 || stop.MethodFiles[0] != "app/other.py" || !stop.SelfCallMethod {
		t.Errorf("unexpected resolution for self.stop(): %+v", stop)
	}
	if len(stop.FunctionFiles) != 0 {
		t.Errorf("no free function named stop exists, got %v", stop.FunctionFiles)
	}

	helper := other.Calls[1].Resolution
	if len(helper.FunctionFiles) != 2 || !helper.SelfCallFunction {
		t.Errorf("unexpected resolution for helper(): %+v", helper)
	}

	missing := other.Calls[2].Resolution
	if len(missing.FunctionFiles) != 0 || len(missing.MethodFiles) != 0 {
		t.Errorf("expected no candidates for missing(), got %+v", missing)
	}
	if missing.SelfCallFunction || missing.SelfCallMethod {
		t.Error("unresolved call cannot be a self call")
	}

	if len(other.Methods) != 2 || other.Methods[0].Name != "run" || other.Methods[1].Name != "stop" {
		t.Errorf("expected flattened methods [run stop], got %+v", other.Methods)
	}
	if records[2].Methods != nil {
		t.Error("document records should not gain a methods list")
	}
}

func TestCrossResolver_Resolve_Parallel(t *testing.T) {
	// Over 1000 calls switches to the worker pool; results must match.
	var records []Record
	for i := 0; i < 60; i++ {
		rec := Record{
			File:      fmt.Sprintf("pkg/mod%d.py", i),
			Type:      FileTypePython,
			Functions: []Definition{testDef(fmt.Sprintf("fn%d", i))},
		}
		for j := 0; j < 20; j++ {
			rec.Calls = append(rec.Calls, Call{CallerFunction: rec.Functions[0].Name, CalledFunction: fmt.Sprintf("fn%d", j)})
		}
		records = append(records, rec)
	}

	resolver := NewCrossResolver()
	resolver.Index(records)
	stats := resolver.Resolve(records)

	if stats.CallsAnnotated != 1200 {
		t.Fatalf("expected 1200 calls, got %d", stats.CallsAnnotated)
	}
	// Only modules 0..19 call their own function.
	if stats.SelfCalls != 20 {
		t.Errorf("expected 20 self calls, got %d", stats.SelfCalls)
	}
	for _, rec := range records {
		for _, c := range rec.Calls {
			if c.Resolution == nil || len(c.Resolution.FunctionFiles) != 1 {
				t.Fatalf("call %s->%s not resolved to exactly one file", c.CallerFunction, c.CalledFunction)
			}
		}
	}
}
