package services

import (
	"fmt"

	"github.com/welldanyogia/webrana-mailcore/internal/models"
	"golang.org/x/sync/errgroup"
)

// TestConcurrentMutations_KeepCountersConsistent races deliveries and state
// changes on the same conversation and checks the counters afterwards.
func (s *ServiceSuite) TestConcurrentMutations_KeepCountersConsistent() {
	msgs := s.thread()
	ids := []uint{msgs[0].ID, msgs[1].ID, msgs[2].ID}
	folder, err := s.organizer.CreateUserFolder(s.ctx, s.scope, "Archive")
	s.Require().NoError(err)

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		i := i
		g.Go(func() error {
			_, err := s.mail.SetUnread(s.ctx, s.scope, ids[i%3:i%3+1], i%2 == 0, i%4 == 0)
			return err
		})
		g.Go(func() error {
			_, err := s.mail.SetImportant(s.ctx, s.scope, ids, i%2 == 1, true)
			return err
		})
		g.Go(func() error {
			_, err := s.delivery.Deliver(s.ctx, s.mailbox, &IncomingMessage{
				MimeMessageID: fmt.Sprintf("<late-%d@x>", i),
				MimeReplyToID: "<r2@x>",
				From:          "bob@example.com",
				To:            s.mailbox.Address,
				Subject:       "Re: Quarterly report",
			})
			return err
		})
	}
	g.Go(func() error {
		_, err := s.mail.SetFolder(s.ctx, s.scope, ids[:1], models.Location{Folder: models.FolderUserFolder, UserFolderID: folder.ID})
		return err
	})
	s.Require().NoError(g.Wait())

	var live int64
	s.db.Model(&models.Message{}).Where("removed = ?", false).Count(&live)
	s.Equal(int64(11), live)
	s.assertConsistent()
}
