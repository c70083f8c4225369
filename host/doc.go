// Package host binds native call ids to engine operations. The table
// is built once at boot, validated against the script programs, and
// handed to the scheduler as its dispatcher. Calls either apply world
// mutations synchronously, emit data-only requests on the frontend
// surfaces, or suspend the calling thread on an engine event.
package host
