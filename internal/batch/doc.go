// Package batch runs many independent trajectories and reduces them to
// tables: exit-time statistics per density, diffusion profiles over time,
// wall impact positions and the point-emitter cloud.
//
// Trials run on a fixed worker pool. Trial i always draws from
// PCG(seed, i), so results do not depend on the worker count or on
// scheduling order.
package batch
