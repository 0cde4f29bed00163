// Package sim provides in-process mount, dome, camera and sun-times
// implementations.
//
// They back `nightwatch run --simulate` dry runs and the package tests. Each
// device records the commands it receives and can be told to fail specific
// methods, a number of times or forever.
package sim
