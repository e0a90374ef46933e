//go:build !unix

package commands

import "github.com/cpc-project/nvm3/cpc"

func socketDialer(string) cpc.Dialer { return cpc.DefaultDialer() }
