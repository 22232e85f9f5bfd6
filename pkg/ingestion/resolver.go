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
	"runtime"
	"slices"
	"sync"
)

// methodKey identifies a method by owning class name and method name.
type methodKey struct {
	class  string
	method string
}

// CrossResolver annotates call sites with the files that define a matching
// function or method. Resolution is by bare name only and is set-valued: a
// call may have several candidate files and none is preferred.
type CrossResolver struct {
	// functionIndex: function name → files defining a free function of that name
	functionIndex map[string][]string

	// methodIndex: (class, method) → files defining that method
	methodIndex map[methodKey][]string
}

// ResolveStats summarises a resolution pass.
type ResolveStats struct {
	FunctionsIndexed int `json:"functions_indexed"`
	MethodsIndexed   int `json:"methods_indexed"`
	CallsAnnotated   int `json:"calls_annotated"`
	SelfCalls        int `json:"self_calls"`
}

// NewCrossResolver creates an empty resolver.
func NewCrossResolver() *CrossResolver {
	return &CrossResolver{
		functionIndex: make(map[string][]string),
		methodIndex:   make(map[methodKey][]string),
	}
}

// Index builds the name indexes from Python records. Files appear in record
// order, each at most once per name.
func (r *CrossResolver) Index(records []Record) {
	for _, rec := range records {
		if rec.Type != FileTypePython {
			continue
		}
		for _, fn := range rec.Functions {
			r.functionIndex[fn.Name] = appendUnique(r.functionIndex[fn.Name], rec.File)
		}
		for _, cls := range rec.Classes {
			for _, m := range cls.Methods {
				key := methodKey{class: cls.Name, method: m.Name}
				r.methodIndex[key] = appendUnique(r.methodIndex[key], rec.File)
			}
		}
	}
}

// Resolve annotates every call in place and fills each Python record's
// flattened Methods list. Index must have been called first.
// Uses parallel processing for large record sets (>1000 calls).
func (r *CrossResolver) Resolve(records []Record) ResolveStats {
	total := 0
	for i := range records {
		total += len(records[i].Calls)
	}

	var selfCalls int
	if total < 1000 {
		for i := range records {
			selfCalls += r.resolveRecord(&records[i])
		}
	} else {
		selfCalls = r.resolveParallel(records)
	}

	functions, methods := r.Stats()
	return ResolveStats{
		FunctionsIndexed: functions,
		MethodsIndexed:   methods,
		CallsAnnotated:   total,
		SelfCalls:        selfCalls,
	}
}

// resolveParallel spreads records over a worker pool.
// The indices are read-only after Index, and each worker writes only to
// the record it owns, so concurrent access is safe.
func (r *CrossResolver) resolveParallel(records []Record) int {
	numWorkers := runtime.NumCPU()
	if numWorkers > 8 {
		numWorkers = 8
	}

	jobs := make(chan int, len(records))
	counts := make(chan int, len(records))

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				counts <- r.resolveRecord(&records[i])
			}
		}()
	}

	for i := range records {
		jobs <- i
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(counts)
	}()

	selfCalls := 0
	for n := range counts {
		selfCalls += n
	}
	return selfCalls
}

// resolveRecord annotates one record and returns its number of self calls.
func (r *CrossResolver) resolveRecord(rec *Record) int {
	if rec.Type != FileTypePython {
		return 0
	}

	methods := make([]Definition, 0)
	for _, cls := range rec.Classes {
		methods = append(methods, cls.Methods...)
	}
	rec.Methods = methods

	selfCalls := 0
	for i := range rec.Calls {
		call := &rec.Calls[i]
		res := r.resolveCall(rec.File, *call)
		if res.SelfCallFunction || res.SelfCallMethod {
			selfCalls++
		}
		call.Resolution = res
	}
	return selfCalls
}

// resolveCall computes the candidate files for a single call site.
func (r *CrossResolver) resolveCall(callerFile string, call Call) *Resolution {
	res := &Resolution{
		FunctionFiles: slices.Clone(r.functionIndex[call.CalledFunction]),
		MethodFiles:   []string{},
	}
	if res.FunctionFiles == nil {
		res.FunctionFiles = []string{}
	}
	if call.CallerClass != "" {
		key := methodKey{class: call.CallerClass, method: call.CalledFunction}
		if files := r.methodIndex[key]; files != nil {
			res.MethodFiles = slices.Clone(files)
		}
	}
	res.SelfCallFunction = slices.Contains(res.FunctionFiles, callerFile)
	res.SelfCallMethod = slices.Contains(res.MethodFiles, callerFile)
	return res
}

// FunctionFiles returns the files defining a free function with this name.
func (r *CrossResolver) FunctionFiles(name string) []string {
	return slices.Clone(r.functionIndex[name])
}

// MethodFiles returns the files defining class.method.
func (r *CrossResolver) MethodFiles(class, method string) []string {
	return slices.Clone(r.methodIndex[methodKey{class: class, method: method}])
}

// Stats returns statistics about the resolver's index.
func (r *CrossResolver) Stats() (functions, methods int) {
	return len(r.functionIndex), len(r.methodIndex)
}

func appendUnique(files []string, file string) []string {
	if slices.Contains(files, file) {
		return files
	}
	return append(files, file)
}
