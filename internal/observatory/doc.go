// Package observatory defines the hardware capabilities Night Watch drives
// and the Session that owns them for the length of one day cycle.
//
// Mount, dome and camera adapters implement MountController,
// DomeController and CameraController. The production adapters live in
// internal/bridge and talk MQTT to vendor bridge processes; sim provides
// in-process stand-ins for tests and dry runs.
//
// Every handle in a Session is guarded so that one command at a time reaches
// each device, whichever component issues it.
package observatory
