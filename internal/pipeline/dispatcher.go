package pipeline

import (
	"hash/fnv"

	"fleet-monitor/compliance/internal/domain"
	"fleet-monitor/compliance/internal/metrics"
)

// Dispatcher fans accepted samples out to the writers and the arrival
// workers. Arrival channels are partitioned by vehicle so one worker sees all
// samples of a vehicle, in order.
type Dispatcher struct {
	DBChan       chan domain.PositionSample
	StateChan    chan domain.PositionSample
	ArrivalChans []chan domain.PositionSample
}

func NewDispatcher(dbSize, stateSize, arrivalSize, arrivalWorkers int) *Dispatcher {
	if arrivalWorkers < 1 {
		arrivalWorkers = 1
	}
	perWorker := arrivalSize / arrivalWorkers
	if perWorker < 1 {
		perWorker = 1
	}

	arrivals := make([]chan domain.PositionSample, arrivalWorkers)
	for i := range arrivals {
		arrivals[i] = make(chan domain.PositionSample, perWorker)
	}

	return &Dispatcher{
		DBChan:       make(chan domain.PositionSample, dbSize),
		StateChan:    make(chan domain.PositionSample, stateSize),
		ArrivalChans: arrivals,
	}
}

func (d *Dispatcher) Dispatch(s domain.PositionSample) {
	select {
	case d.DBChan <- s:
	default:
		metrics.DBChannelDrops.Add(1)
	}

	select {
	case d.StateChan <- s:
	default:
		metrics.StateChannelDrops.Add(1)
	}

	select {
	case d.ArrivalChans[partition(s.VehicleID, len(d.ArrivalChans))] <- s:
	default:
		metrics.ArrivalChannelDrops.Add(1)
	}
}

// Close closes every channel. Dispatch must not be called afterwards.
func (d *Dispatcher) Close() {
	close(d.DBChan)
	close(d.StateChan)
	for _, ch := range d.ArrivalChans {
		close(ch)
	}
}

func partition(vehicleID string, n int) int {
	h := fnv.New32a()
	h.Write([]byte(vehicleID))
	return int(h.Sum32() % uint32(n))
}
