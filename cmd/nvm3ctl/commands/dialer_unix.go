//go:build unix

package commands

import "github.com/cpc-project/nvm3/cpc"

func socketDialer(dir string) cpc.Dialer { return &cpc.SocketDialer{Dir: dir} }
