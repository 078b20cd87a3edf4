package domain

import "context"

// SlotPool limita quantas requisições o gate encaminha ao app ao mesmo tempo.
// Acquire espera por uma vaga até o ctx encerrar; ok=false significa sem vaga
// e sem release.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}
