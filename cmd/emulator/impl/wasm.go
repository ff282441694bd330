// Copyright 2024 Google LLC. All Rights Reserved.
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

package impl

import (
	"fmt"
	"io"

	"github.com/perlin-network/life/exec"
	wasm_validation "github.com/perlin-network/life/wasm-validation"
)

// wasmMagic starts every WebAssembly module.
const wasmMagic = "\x00asm"

// resolver provides the imports available to applications run by the
// emulator. Output goes to the emulated console.
type resolver struct {
	out  io.Writer
	slot int
}

// ResolveFunc implements exec.ImportResolver.
func (r *resolver) ResolveFunc(module, field string) exec.FunctionImport {
	switch module {
	case "env":
		switch field {
		case "__life_log":
			return func(vm *exec.VirtualMachine) int64 {
				ptr := int(uint32(vm.GetCurrentFrame().Locals[0]))
				msgLen := int(uint32(vm.GetCurrentFrame().Locals[1]))
				msg := vm.Memory[ptr : ptr+msgLen]
				fmt.Fprintf(r.out, "[app] %s\n", string(msg))
				return 0
			}
		case "print_i64":
			return func(vm *exec.VirtualMachine) int64 {
				fmt.Fprintf(r.out, "[app] print_i64: %d\n", vm.GetCurrentFrame().Locals[0])
				return 0
			}
		case "print":
			return func(vm *exec.VirtualMachine) int64 {
				ptr := int(uint32(vm.GetCurrentFrame().Locals[0]))
				n := 0
				for vm.Memory[ptr+n] != 0 {
					n++
				}
				fmt.Fprintf(r.out, "[app] print: %s\n", string(vm.Memory[ptr:ptr+n]))
				return 0
			}
		default:
			panic(fmt.Errorf("unknown field: %s", field))
		}
	default:
		panic(fmt.Errorf("unknown module: %s", module))
	}
}

// ResolveGlobal implements exec.ImportResolver.
func (r *resolver) ResolveGlobal(module, field string) int64 {
	switch module {
	case "env":
		switch field {
		case "boot_slot":
			return int64(r.slot)
		default:
			panic(fmt.Errorf("unknown field: %s", field))
		}
	default:
		panic(fmt.Errorf("unknown module: %s", module))
	}
}

// runWasm runs the function named entryPoint of the module in code,
// preceded by the module's start function if it has one.
func runWasm(entryPoint string, code []byte, r *resolver) (int64, error) {
	if err := wasm_validation.ValidateWasm(code); err != nil {
		return 0, err
	}

	vm, err := exec.NewVirtualMachine(code, exec.VMConfig{
		DefaultMemoryPages:   128,
		DefaultTableSize:     65536,
		DisableFloatingPoint: false,
	}, r, nil)
	if err != nil {
		return 0, err
	}

	entryID, ok := vm.GetFunctionExport(entryPoint)
	if !ok {
		fmt.Fprintf(r.out, "Entry function %s not found; starting from 0.\n", entryPoint)
		entryID = 0
	}

	if vm.Module.Base.Start != nil {
		startID := int(vm.Module.Base.Start.Index)
		if _, err := vm.Run(startID); err != nil {
			vm.PrintStackTrace()
			return 0, err
		}
	}
	ret, err := vm.Run(entryID)
	if err != nil {
		vm.PrintStackTrace()
		return 0, err
	}
	return ret, nil
}
