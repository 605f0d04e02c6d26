// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import "github.com/muesli/termenv"

var (
	addressStyle = termenv.Style{}.Foreground(termenv.ANSIGreen)
	aliasStyle   = termenv.Style{}.Foreground(termenv.ANSIYellow)
	failureStyle = termenv.Style{}.Foreground(termenv.ANSIRed)
)

var headerStyle = termenv.Style{}.Bold()
