package vm

// ---------------------------------------------------------------------------
// Instruction execution
// ---------------------------------------------------------------------------

// truth converts a comparison result to the stack's 0/1 encoding.
func truth(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// evalBinary computes a two-operand arithmetic, bitwise, or comparison
// result. Arithmetic wraps at the opcode's width; comparisons are
// unsigned 16-bit; shift counts are taken modulo 16. ok is false only
// for a zero divisor.
func evalBinary(op Opcode, a, b int32) (int32, bool) {
	switch op {
	case OpAdd8:
		return int32(uint8(a) + uint8(b)), true
	case OpAdd16:
		return int32(uint16(a) + uint16(b)), true
	case OpSub8:
		return int32(uint8(a) - uint8(b)), true
	case OpSub16:
		return int32(uint16(a) - uint16(b)), true
	case OpMul8:
		return int32(uint8(a) * uint8(b)), true
	case OpMul16:
		return int32(uint16(a) * uint16(b)), true
	case OpDiv8:
		if uint8(b) == 0 {
			return 0, false
		}
		return int32(uint8(a) / uint8(b)), true
	case OpDiv16:
		if uint16(b) == 0 {
			return 0, false
		}
		return int32(uint16(a) / uint16(b)), true
	case OpMod8:
		if uint8(b) == 0 {
			return 0, false
		}
		return int32(uint8(a) % uint8(b)), true
	case OpMod16:
		if uint16(b) == 0 {
			return 0, false
		}
		return int32(uint16(a) % uint16(b)), true

	case OpAnd:
		return int32(uint16(a) & uint16(b)), true
	case OpOr:
		return int32(uint16(a) | uint16(b)), true
	case OpXor:
		return int32(uint16(a) ^ uint16(b)), true
	case OpShl:
		return int32(uint16(a) << (uint16(b) & 15)), true
	case OpShr:
		return int32(uint16(a) >> (uint16(b) & 15)), true

	case OpCmpEQ:
		return truth(uint16(a) == uint16(b)), true
	case OpCmpNE:
		return truth(uint16(a) != uint16(b)), true
	case OpCmpLT:
		return truth(uint16(a) < uint16(b)), true
	case OpCmpLE:
		return truth(uint16(a) <= uint16(b)), true
	case OpCmpGT:
		return truth(uint16(a) > uint16(b)), true
	case OpCmpGE:
		return truth(uint16(a) >= uint16(b)), true
	}
	return 0, true
}

// exec runs a thread until it suspends, completes, faults, or uses up
// the per-tick instruction budget. Verified programs cannot jump or
// read operands out of bounds, so the loop trusts the code layout and
// faults only on the dynamic conditions: stack limits, call depth,
// zero divisors, and failed host calls.
func (s *Scheduler) exec(t *Thread) {
	t.state = ThreadRunning
	if t.pushWake {
		t.pushWake = false
		if !t.push(t.wake) {
			t.faultAt(OpNative, t.pc, FaultStackOverflow, nil)
			return
		}
	}

	code := t.program.Code
	for executed := 0; executed < s.budget; executed++ {
		if t.pc >= len(code) {
			// Running off the end completes the thread.
			t.state = ThreadCompleted
			return
		}
		opPC := t.pc
		op := Opcode(code[t.pc])
		t.pc++

		switch op {
		// --- Stack ---
		case OpNOP:

		case OpHALT:
			t.state = ThreadCompleted
			return

		case OpPushConst:
			idx := leUint16(code[t.pc:])
			t.pc += 2
			c := t.program.Consts[idx]
			var v int32
			switch c.Tag {
			case ConstInt:
				v = c.Int
			case ConstString:
				// Strings travel as pool indices; natives resolve
				// them through the program.
				v = int32(idx)
			case ConstRecord:
				v = int32(uint32(c.Record))
			}
			if !t.push(v) {
				t.faultAt(op, opPC, FaultStackOverflow, nil)
				return
			}

		case OpPushImm8:
			v := int32(code[t.pc])
			t.pc++
			if !t.push(v) {
				t.faultAt(op, opPC, FaultStackOverflow, nil)
				return
			}

		case OpPushImm16:
			v := int32(leUint16(code[t.pc:]))
			t.pc += 2
			if !t.push(v) {
				t.faultAt(op, opPC, FaultStackOverflow, nil)
				return
			}

		case OpPushFlag:
			id := leUint16(code[t.pc:])
			t.pc += 2
			if !t.push(truth(s.mem.Flag(id))) {
				t.faultAt(op, opPC, FaultStackOverflow, nil)
				return
			}

		case OpPushVar:
			idx := leUint16(code[t.pc:])
			t.pc += 2
			if !t.push(int32(s.mem.Var(idx))) {
				t.faultAt(op, opPC, FaultStackOverflow, nil)
				return
			}

		case OpDup:
			if t.sp == 0 {
				t.faultAt(op, opPC, FaultStackUnderflow, nil)
				return
			}
			if !t.push(t.stack[t.sp-1]) {
				t.faultAt(op, opPC, FaultStackOverflow, nil)
				return
			}

		case OpPop:
			if _, ok := t.pop(); !ok {
				t.faultAt(op, opPC, FaultStackUnderflow, nil)
				return
			}

		case OpSwap:
			if t.sp < 2 {
				t.faultAt(op, opPC, FaultStackUnderflow, nil)
				return
			}
			t.stack[t.sp-1], t.stack[t.sp-2] = t.stack[t.sp-2], t.stack[t.sp-1]

		// --- Flags and variables ---
		case OpStoreFlag:
			id := leUint16(code[t.pc:])
			t.pc += 2
			v, ok := t.pop()
			if !ok {
				t.faultAt(op, opPC, FaultStackUnderflow, nil)
				return
			}
			s.mem.SetFlag(id, v != 0)

		case OpStoreVar:
			idx := leUint16(code[t.pc:])
			t.pc += 2
			v, ok := t.pop()
			if !ok {
				t.faultAt(op, opPC, FaultStackUnderflow, nil)
				return
			}
			s.mem.SetVar(idx, uint16(v))

		case OpIncVar:
			idx := leUint16(code[t.pc:])
			t.pc += 2
			s.mem.SetVar(idx, s.mem.Var(idx)+1)

		case OpDecVar:
			idx := leUint16(code[t.pc:])
			t.pc += 2
			s.mem.SetVar(idx, s.mem.Var(idx)-1)

		// --- Arithmetic, bitwise, comparison ---
		case OpAdd8, OpAdd16, OpSub8, OpSub16, OpMul8, OpMul16,
			OpDiv8, OpDiv16, OpMod8, OpMod16,
			OpAnd, OpOr, OpXor, OpShl, OpShr,
			OpCmpEQ, OpCmpNE, OpCmpLT, OpCmpLE, OpCmpGT, OpCmpGE:
			if t.sp < 2 {
				t.faultAt(op, opPC, FaultStackUnderflow, nil)
				return
			}
			t.sp--
			b := t.stack[t.sp]
			a := t.stack[t.sp-1]
			r, ok := evalBinary(op, a, b)
			if !ok {
				t.faultAt(op, opPC, FaultDivByZero, nil)
				return
			}
			t.stack[t.sp-1] = r

		// --- Control flow ---
		case OpJump:
			off := int(int16(leUint16(code[t.pc:])))
			t.pc += 2
			t.pc += off

		case OpJumpTrue:
			off := int(int16(leUint16(code[t.pc:])))
			t.pc += 2
			v, ok := t.pop()
			if !ok {
				t.faultAt(op, opPC, FaultStackUnderflow, nil)
				return
			}
			if v != 0 {
				t.pc += off
			}

		case OpJumpFalse:
			off := int(int16(leUint16(code[t.pc:])))
			t.pc += 2
			v, ok := t.pop()
			if !ok {
				t.faultAt(op, opPC, FaultStackUnderflow, nil)
				return
			}
			if v == 0 {
				t.pc += off
			}

		case OpCall:
			entry := leUint16(code[t.pc:])
			t.pc += 2
			if len(t.calls) >= s.callDepth {
				t.faultAt(op, opPC, FaultCallDepth, nil)
				return
			}
			ent, ok := t.program.Entry(entry)
			if !ok {
				t.faultAt(op, opPC, FaultBadAccess, nil)
				return
			}
			t.calls = append(t.calls, callFrame{entry: entry, retPC: t.pc})
			t.pc = int(ent.Offset)

		case OpReturn:
			n := len(t.calls)
			if n == 0 {
				t.state = ThreadCompleted
				return
			}
			t.pc = t.calls[n-1].retPC
			t.calls = t.calls[:n-1]

		// --- Waits and thread control ---
		case OpWaitFrames:
			n := int(code[t.pc])
			t.pc++
			t.suspend(Wait{Reason: WaitFrames, Frames: n}, false)
			return

		case OpWaitAnim:
			ent := EntityID(code[t.pc])
			t.pc++
			t.suspend(Wait{Reason: WaitAnim, Entity: ent}, false)
			return

		case OpWaitInput:
			mask := code[t.pc]
			t.pc++
			t.suspend(Wait{Reason: WaitInput, Mask: mask}, false)
			return

		case OpWaitThread:
			v, ok := t.pop()
			if !ok {
				t.faultAt(op, opPC, FaultStackUnderflow, nil)
				return
			}
			target, live := s.threads[ThreadID(v)]
			if live && target != t && !target.state.Done() {
				t.suspend(Wait{Reason: WaitThread, Thread: ThreadID(v)}, false)
				return
			}
			// A finished or unknown thread never blocks the waiter.

		case OpSpawn:
			entry := leUint16(code[t.pc:])
			t.pc += 2
			child := s.spawnChild(t, entry)
			if !t.push(int32(child)) {
				t.faultAt(op, opPC, FaultStackOverflow, nil)
				return
			}

		case OpTerminate:
			t.state = ThreadTerminated
			return

		// --- Host calls ---
		case OpNative:
			id := leUint16(code[t.pc:])
			t.pc += 2
			argc := int(code[t.pc])
			t.pc++
			if t.sp < argc {
				t.faultAt(op, opPC, FaultStackUnderflow, nil)
				return
			}
			t.sp -= argc
			args := t.stack[t.sp : t.sp+argc]
			if s.disp == nil {
				t.faultAt(op, opPC, FaultNative, ErrUnboundNativeCall)
				return
			}
			res, err := s.disp.Call(t, id, args)
			if err != nil {
				t.faultAt(op, opPC, FaultNative, err)
				return
			}
			if t.state != ThreadRunning {
				// The host retired this thread during the call.
				return
			}
			if res.Wait != nil {
				// The wake value is pushed when the wait resolves.
				t.suspend(*res.Wait, true)
				return
			}
			if !t.push(res.Value) {
				t.faultAt(op, opPC, FaultStackOverflow, nil)
				return
			}

		default:
			t.faultAt(op, opPC, FaultBadOpcode, nil)
			return
		}
	}

	// Budget exhausted: forced yield, same pc next tick.
	s.log.Warningf("thread %d exceeded the tick budget, yielding", t.id)
	t.state = ThreadReady
}
