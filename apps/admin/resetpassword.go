package main

import (
	"context"
	"time"

	"github.com/jorgead/ritmatiza/core"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()

	usr, err := cli.usrRepo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()

	_, err = cli.usrRepo.UpdateUser(ctx, usr)
	return err
}
