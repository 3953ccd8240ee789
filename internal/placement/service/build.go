package service

import (
	"qplace/internal/circuit"
	"qplace/internal/device"
	"qplace/internal/placement/models"
	dErrors "qplace/pkg/domain-errors"
)

// buildDevice turns a device spec into a partitioned controller config.
// Latency constants resolve spec value first, then service defaults,
// then the device constants.
func (s *Service) buildDevice(spec models.DeviceSpec) (*device.ControllerConfig, error) {
	g, err := device.NewCouplingGraph(spec.NumQubits, spec.CouplingEdges)
	if err != nil {
		return nil, err
	}

	opts := []device.ControllerConfigOption{
		device.WithPartitionLogger(s.logger),
	}
	if spec.Strategy != "" {
		strategy, err := device.ParseStrategy(spec.Strategy)
		if err != nil {
			return nil, err
		}
		opts = append(opts, device.WithStrategy(strategy))
	}

	inner := spec.DtInner
	if inner == 0 {
		inner = s.defaults.DtInner
	}
	if inner == 0 {
		inner = device.DefaultDtInner
	}
	inter := spec.DtInter
	if inter == 0 {
		inter = s.defaults.DtInter
	}
	if inter == 0 {
		inter = device.DefaultDtInter
	}
	opts = append(opts, device.WithLatencies(inner, inter))

	return device.NewControllerConfig(g, spec.NumControllers, opts...)
}

// buildCircuit turns a circuit spec into the analysis representation.
func buildCircuit(spec models.CircuitSpec) (*circuit.Circuit, error) {
	c := circuit.New(spec.NumQubits, spec.NumClbits)
	for _, reg := range spec.Registers {
		c.AddRegister(reg.Name, reg.Clbits...)
	}
	for i, inst := range spec.Instructions {
		if inst.Name == "" {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "instruction %d has no name", i)
		}
		in := circuit.Instruction{
			Name:   inst.Name,
			Qubits: append([]int(nil), inst.Qubits...),
			Clbits: append([]int(nil), inst.Clbits...),
		}
		switch {
		case inst.CondBit != nil && inst.CondRegister != "":
			return nil, dErrors.Newf(dErrors.CodeInvalidInput,
				"instruction %d conditions on both a bit and a register", i)
		case inst.CondBit != nil:
			in.Condition = &circuit.Condition{
				Kind:  circuit.ConditionBit,
				Bit:   *inst.CondBit,
				Value: inst.CondValue,
			}
		case inst.CondRegister != "":
			in.Condition = &circuit.Condition{
				Kind:     circuit.ConditionRegister,
				Register: inst.CondRegister,
				Value:    inst.CondValue,
			}
		}
		c.Append(in)
	}
	return c, nil
}
