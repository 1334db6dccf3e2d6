package directory

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestSchoolByCode(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT id, school_code, name").
		WithArgs("ECO3847").
		WillReturnRows(sqlmock.NewRows([]string{"id", "school_code", "name"}).
			AddRow(1, "ECO3847", "Collège Jules Ferry"))

	s := NewStore(db)
	school, err := s.SchoolByCode(context.Background(), "ECO3847")
	if err != nil {
		t.Fatalf("SchoolByCode: %v", err)
	}
	if school == nil || school.Name != "Collège Jules Ferry" {
		t.Fatalf("SchoolByCode = %+v, want the registered school", school)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSchoolByCode_Unknown(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT id, school_code, name").
		WithArgs("ZZZ9999").
		WillReturnRows(sqlmock.NewRows([]string{"id", "school_code", "name"}))

	s := NewStore(db)
	school, err := s.SchoolByCode(context.Background(), "ZZZ9999")
	if err != nil {
		t.Fatalf("SchoolByCode: %v", err)
	}
	if school != nil {
		t.Fatalf("SchoolByCode = %+v, want nil for an unknown code", school)
	}
}

func TestSearchByName(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT id, school_code, name").
		WithArgs("Jules", maxNameResults).
		WillReturnRows(sqlmock.NewRows([]string{"id", "school_code", "name"}).
			AddRow(1, "COL1234", "Collège Jules Ferry").
			AddRow(2, "COL5678", "Collège Jules Verne"))

	s := NewStore(db)
	schools, err := s.SearchByName(context.Background(), "Jules")
	if err != nil {
		t.Fatalf("SearchByName: %v", err)
	}
	if len(schools) != 2 {
		t.Fatalf("got %d schools, want 2", len(schools))
	}
	if schools[0].Code != "COL1234" {
		t.Errorf("schools[0].Code = %q, want COL1234", schools[0].Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
