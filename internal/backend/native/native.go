// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

//go:build cgo && energymon

package native

/*
#cgo LDFLAGS: -lenergymon-default
#include <stdlib.h>
#include <energymon/energymon-default.h>

static int em_init(energymon* em) { return em->finit(em); }
static uint64_t em_read(const energymon* em) { return em->fread(em); }
static int em_finish(energymon* em) { return em->ffinish(em); }
static int em_source(const energymon* em, char* buf, size_t n) { return em->fsource(buf, n) != NULL; }
static uint64_t em_interval(const energymon* em) { return em->finterval(em); }
static uint64_t em_precision(const energymon* em) { return em->fprecision(em); }
static int em_exclusive(const energymon* em) { return em->fexclusive(); }
*/
import "C"

import (
	"unsafe"

	"github.com/sustainable-computing-io/energymon/internal/energymon"
)

// Built reports whether the native binding was compiled in
const Built = true

// Get binds t to the energymon implementation that libenergymon-default was
// built with. The native struct lives in C memory because some
// implementations hand it to their own polling threads; it is freed after
// finish, or right away when init fails.
func Get(t *energymon.Table) int {
	em := (*C.energymon)(C.calloc(1, C.sizeof_energymon))
	if em == nil {
		return StatusNoMemory
	}

	if ret := C.energymon_get_default(em); ret != 0 {
		C.free(unsafe.Pointer(em))
		return int(ret)
	}

	*t = energymon.Table{
		Finish: func() int {
			ret := 0
			if em.ffinish != nil {
				ret = int(C.em_finish(em))
			}
			C.free(unsafe.Pointer(em))
			return ret
		},
	}

	if em.finit != nil {
		t.Init = func() int {
			ret := int(C.em_init(em))
			if ret != 0 {
				C.free(unsafe.Pointer(em))
			}
			return ret
		}
	}
	if em.fread != nil {
		t.ReadTotal = func() uint64 { return uint64(C.em_read(em)) }
	}
	if em.fsource != nil {
		t.Source = func(buf []byte) bool {
			if len(buf) == 0 {
				return false
			}
			return C.em_source(em, (*C.char)(unsafe.Pointer(&buf[0])), C.size_t(len(buf))) != 0
		}
	}
	if em.finterval != nil {
		t.Interval = func() uint64 { return uint64(C.em_interval(em)) }
	}
	if em.fprecision != nil {
		t.Precision = func() uint64 { return uint64(C.em_precision(em)) }
	}
	if em.fexclusive != nil {
		t.Exclusive = func() int { return int(C.em_exclusive(em)) }
	}
	return 0
}
