//go:build ignore

// genman generates the iperf man page.
// Usage: go run cmd/genman/main.go > iperf.1
package main

import (
	"fmt"
	"os"
)

func main() {
	// Use a fixed date for reproducible builds/CI
	date := "August 2026"

	manpage := fmt.Sprintf(`.TH IPERF 1 "%s" "iperf 0.3.0" "User Commands"
.SH NAME
iperf \- minimal single-connection TCP throughput tester
.SH SYNOPSIS
.B iperf server
\fIport\fR
.br
.B iperf client
\fIhost\fR \fIport\fR [\fIseconds\fR] [\fIbuffer_kb\fR]
.SH DESCRIPTION
.B iperf
measures one-direction TCP throughput over a single stream. The server
accepts exactly one connection and counts what arrives; the client sends a
fixed buffer in a loop for a wall-clock duration, then half-closes and
waits for the peer to finish. Both ends print a report line roughly every
second and one TOTAL line at the end.
.SH MODES
.TP
.B server \fIport\fR
Bind all interfaces on \fIport\fR (1-65535), accept one connection, and
receive until the client closes. The short form \fBs\fR also works.
.TP
.B client \fIhost\fR \fIport\fR [\fIseconds\fR] [\fIbuffer_kb\fR]
Connect and send for \fIseconds\fR (default 10) using a \fIbuffer_kb\fR KiB
payload buffer (default 16). Values less than 1 fall back to the defaults.
The short form \fBc\fR also works.
.SH OPTIONS
.TP
.BR \-r ", " \-\-rate " \fIbandwidth\fR"
Cap the client send rate with a token bucket.
Example: \fB\-\-rate 100mbit\fR
.TP
.B \-\-debug
Log retry and drain detail to stderr.
.TP
.BR \-h ", " \-\-help
Show help message.
.TP
.BR \-v ", " \-\-version
Show version information.
.SH RATE FORMATS
Rate values use SI units (k=1000, not 1024):
.TP
.B 100\fR or \fB100bps
100 bits per second
.TP
.B 56kbit\fR or \fB56k
56,000 bits per second
.TP
.B 1mbit\fR or \fB1m
1,000,000 bits per second
.TP
.B 100KB
100,000 bytes per second
.SH OUTPUT
Reports go to stdout, errors to stderr. Interval lines show the second
boundaries, the bytes moved in the interval, and the rate over the time
actually elapsed:
.PP
.RS
.nf
[server] 0-1s: 117440512 bytes  939.52 Mb/s (117.44 MB/s)
[server] TOTAL: 1174405120 bytes in 10.00s  939.52 Mb/s (117.44 MB/s)
.fi
.RE
.PP
Rates are decimal: Mb/s is bits divided by 1e6, MB/s is bytes divided
by 1e6.
.SH EXAMPLES
Receive on port 5201:
.PP
.RS
.nf
iperf server 5201
.fi
.RE
.PP
Send for 30 seconds with a 64 KiB buffer:
.PP
.RS
.nf
iperf client 192.0.2.10 5201 30 64
.fi
.RE
.PP
Send capped at 100 Mbit/s:
.PP
.RS
.nf
iperf client \-\-rate 100mbit host.example 5201
.fi
.RE
.SH EXIT STATUS
.B iperf
exits 0 after a completed session, even one cut short by a mid-transfer
I/O error (partial results still print). It exits 1 only for setup
failures: bad arguments, bad port, resolve, bind, listen, accept, or
connect errors.
.SH NOTES
.IP \(bu 2
One connection per run. The server closes its listening socket after the
first accept; run it again for another session.
.IP \(bu 2
The payload is a repeated 'A'; content is never verified, only counted.
.IP \(bu 2
The listening socket sets SO_REUSEADDR so back-to-back runs do not fight
TIME_WAIT.
.SH SEE ALSO
.BR nc (1),
.BR ss (8)
`, date)

	fmt.Fprint(os.Stdout, manpage)
}
